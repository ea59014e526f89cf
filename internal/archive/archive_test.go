package archive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	base := Config{
		Endpoint:  "minio:9000",
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "transcripts",
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing endpoint", func(c *Config) { c.Endpoint = " " }},
		{"missing access key", func(c *Config) { c.AccessKey = "" }},
		{"missing secret key", func(c *Config) { c.SecretKey = "" }},
		{"missing bucket", func(c *Config) { c.Bucket = "  " }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			_, err := New(cfg)
			require.Error(t, err)
		})
	}
}

func TestNewDefaultsRegion(t *testing.T) {
	a, err := New(Config{
		Endpoint:  "minio:9000",
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "transcripts",
	})
	require.NoError(t, err)
	require.Equal(t, "us-east-1", a.region)
}

func TestTranscriptKeyLayout(t *testing.T) {
	require.Equal(t, "project/p1/item-0.txt", transcriptKey("p1", 0))
	require.Equal(t, "project/alpha/item-12.txt", transcriptKey("alpha", 12))
}
