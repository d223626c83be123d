package storage

import (
	"context"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"go-loginguard/pkg/models"
)

const classificationMeasurement = "login_classification"

// InfluxSink stores each classification as a point tagged by verdict,
// role and country, with the encoded features as fields.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	client := influxdb2.NewClient(url, token)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}
}

func (s *InfluxSink) Name() string { return "influxdb" }

func (s *InfluxSink) Write(ctx context.Context, rec *models.AuditRecord) error {
	fields := make(map[string]interface{}, len(models.FeatureNames)+1)
	for i, v := range rec.Features.Values() {
		fields[models.FeatureNames[i]] = int64(v)
	}
	fields["client_ip"] = rec.Raw.IP

	p := influxdb2.NewPoint(
		classificationMeasurement,
		map[string]string{
			"classification": string(rec.Classification),
			"role":           rec.Raw.Role,
			"country":        rec.Enrichment.Country,
		},
		fields,
		rec.Timestamp,
	)
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}
