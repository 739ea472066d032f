// Package appconfig loads the adminauthd configuration with viper and maps
// it onto the engine, store and HTTP server configurations.
package appconfig
