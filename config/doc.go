// Package config loads kalikit configuration with Viper.
//
// Values come from, in increasing precedence: registered defaults, a YAML
// config file, a .env file (godotenv) and the process environment. The
// config file is searched for in the working directory, the user config
// directory and /etc/<service>/ unless one is given explicitly.
//
// # Usage
//
//	var cfg AppConfig
//	err := config.LoadConfig("kalikit", &cfg, config.WithConfigFile(path))
//
// Environment variables use the upper-cased service name as prefix with
// underscore-separated paths (e.g. KALIKIT_HTTP_ADDR sets http.addr).
package config
