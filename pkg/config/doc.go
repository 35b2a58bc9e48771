// Package config loads blastradius configuration from defaults, an optional YAML
// file and environment variables, in that order.
//
// # Configuration Structure
//
// The YAML file is named by BLASTRADIUS_CONFIG_FILE and mirrors the Config
// struct:
//
//	server:
//	  port: "8080"
//	source:
//	  type: sql            # sql or rest
//	  driver: postgres     # postgres or sqlite3
//	  dsn: postgres://localhost/org?sslmode=disable
//	  redisURL: redis://localhost:6379/0
//	analysis:
//	  baseURL: https://example.my.salesforce.com
//	  enhanceReportData: true
//
// Every key can be overridden from the environment:
//
//	BLASTRADIUS_PORT="8080"
//	BLASTRADIUS_SOURCE="rest"
//	BLASTRADIUS_INSTANCE_URL="https://example.my.salesforce.com"
//	BLASTRADIUS_CLIENT_ID="..."
//	BLASTRADIUS_CLIENT_SECRET="..."
//	BLASTRADIUS_S3_BUCKET="org-snapshots"
//	BLASTRADIUS_MAX_DEPTH="5"
//	BLASTRADIUS_LOG_LEVEL="debug"
//	BLASTRADIUS_OTEL_ENABLED="true"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	source, err := sfapi.Open(ctx, cfg.Source, logger)
package config
