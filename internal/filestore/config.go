package filestore

// Provider identifies the export destination backend.
type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderMinIO Provider = "minio"
)

// Config holds all settings needed to open an export destination.
type Config struct {
	// Provider is the destination backend (ProviderLocal, ProviderMinIO).
	Provider Provider `yaml:"provider"`

	// BaseDir is where local exports land. Absolute keys bypass it.
	BaseDir string `yaml:"baseDir"`

	// Endpoint is the host:port of the object storage server.
	// Example: "localhost:9000" for local MinIO.
	Endpoint string `yaml:"endpoint"`

	// AccessKey is the access key ID (MinIO / S3 style).
	AccessKey string `yaml:"accessKey"`

	// SecretKey is the secret access key.
	SecretKey string `yaml:"secretKey"`

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool `yaml:"useSSL"`

	// Region is used by region-aware backends (e.g. AWS S3).
	// Leave empty for MinIO.
	Region string `yaml:"region"`

	// Bucket is the bucket exports are written into.
	Bucket string `yaml:"bucket"`
}

// DefaultConfig returns a local-filesystem destination rooted at dir.
func DefaultConfig(dir string) *Config {
	return &Config{
		Provider: ProviderLocal,
		BaseDir:  dir,
	}
}
