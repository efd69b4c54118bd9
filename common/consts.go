package common

const (
	PRIVATE_CREDENTIALS_DOTENV = ".env.private"
	DEFAULT_CONFIG_DIR         = ".config/"
	DEFAULT_CONFIG_FILE        = "config.json"

	DEFAULT_LISTEN_ADDR    = ":4000"
	DEFAULT_REDIS_ADDR     = "localhost:6379"
	DEFAULT_REDIS_PASSWORD = ""
	DEFAULT_REDIS_PREFIX   = "sbm:"

	DEFAULT_S3_REGION = "us-east-1"

	// Stored document references are identities, not credentials; every
	// read mints a fresh presigned URL with this validity.
	DEFAULT_DOCUMENT_URL_TTL_MINUTES = 15

	DOCUMENT_KEY_PREFIX = "id-documents/"

	// Processed webhook event IDs are remembered this long to absorb
	// Stripe's at-least-once redelivery window.
	WEBHOOK_EVENT_DEDUP_TTL_HOURS = 48
)
