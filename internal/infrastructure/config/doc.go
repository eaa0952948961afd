// Package config handles loading and validating brokerlink configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Broker passwords should be set via BROKERLINK_MQTT_PASSWORD, not the file
//   - The config file should have restricted permissions (0600)
//   - mqtt.broker.insecure_skip_verify accepts any TLS certificate and hostname;
//     leave it off unless the broker uses a self-signed certificate on a trusted network
//
// Usage:
//
//	cfg, err := config.Load("configs/brokerlink.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Broker.Host)
package config
