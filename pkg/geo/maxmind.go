package geo

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"go-loginguard/pkg/models"
)

var errInvalidIP = errors.New("invalid ip address")

// MaxMindResolver reads GeoIP2/GeoLite2 City and ASN databases. The ASN
// organisation stands in for the ISP.
type MaxMindResolver struct {
	cityDB *geoip2.Reader
	asnDB  *geoip2.Reader
	lang   string
}

// OpenMaxMind opens the City database and, when asnPath is set, the ASN database.
func OpenMaxMind(cityPath, asnPath string) (*MaxMindResolver, error) {
	cityDB, err := geoip2.Open(cityPath)
	if err != nil {
		return nil, fmt.Errorf("open city db: %w", err)
	}
	r := &MaxMindResolver{cityDB: cityDB, lang: "en"}
	if asnPath != "" {
		asnDB, err := geoip2.Open(asnPath)
		if err != nil {
			cityDB.Close()
			return nil, fmt.Errorf("open asn db: %w", err)
		}
		r.asnDB = asnDB
	}
	return r, nil
}

func (r *MaxMindResolver) Resolve(ctx context.Context, ip string) models.GeoInfo {
	return resolve(ctx, r, ip)
}

func (r *MaxMindResolver) name() string { return "maxmind" }

func (r *MaxMindResolver) lookup(_ context.Context, ip string) (models.GeoInfo, error) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return models.GeoInfo{}, fmt.Errorf("%w: %q", errInvalidIP, ip)
	}

	record, err := r.cityDB.City(addr)
	if err != nil {
		return models.GeoInfo{}, err
	}

	info := models.GeoInfo{
		City:    record.City.Names[r.lang],
		Country: record.Country.Names[r.lang],
	}
	if len(record.Subdivisions) > 0 {
		info.Region = record.Subdivisions[0].Names[r.lang]
	}

	// A failed ASN lookup leaves ISP unknown without discarding the city record.
	if r.asnDB != nil {
		if asn, err := r.asnDB.ASN(addr); err == nil {
			info.ISP = asn.AutonomousSystemOrganization
		}
	}
	return info, nil
}

func (r *MaxMindResolver) Close() error {
	var err error
	if r.asnDB != nil {
		err = r.asnDB.Close()
	}
	if cerr := r.cityDB.Close(); cerr != nil {
		err = cerr
	}
	return err
}
