// defaults.go: default configuration values applied before reading the config file.
package conf

import "github.com/spf13/viper"

// setDefaultConfig sets viper defaults for every configuration parameter.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Main
	viper.SetDefault("main.name", "CartBridge")
	viper.SetDefault("main.loglevel", "info")

	// Source database
	viper.SetDefault("source.host", "localhost")
	viper.SetDefault("source.port", 3306)
	viper.SetDefault("source.username", "")
	viper.SetDefault("source.password", "")
	viper.SetDefault("source.database", "")
	viper.SetDefault("source.prefix", "oc_")
	viper.SetDefault("source.languageid", 1)

	// Target admin API
	viper.SetDefault("target.baseurl", "")
	viper.SetDefault("target.apitoken", "")
	viper.SetDefault("target.timeout", "30s")
	viper.SetDefault("target.saleschannel", "Webshop")
	viper.SetDefault("target.stocklocation", "Main Warehouse")
	viper.SetDefault("target.currencycode", "eur")
	viper.SetDefault("target.regionid", "")

	// Object storage
	viper.SetDefault("storage.bucket", "")
	viper.SetDefault("storage.region", "")
	viper.SetDefault("storage.endpoint", "")
	viper.SetDefault("storage.accesskey", "")
	viper.SetDefault("storage.secretkey", "")

	// Migration engine
	viper.SetDefault("migration.batchsize", 50)
	viper.SetDefault("migration.imageconcurrency", 4)
	viper.SetDefault("migration.maximagesperproduct", 8)
	viper.SetDefault("migration.placeholderimageurl", "https://placehold.co/600x600?text=No+Image")
	viper.SetDefault("migration.datadir", "data")
	viper.SetDefault("migration.dryrun", false)
	viper.SetDefault("migration.verifysamplesize", 100)
}
