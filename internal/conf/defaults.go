// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "Reefey")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "reefey.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)
	viper.SetDefault("main.log.rotationday", time.Sunday)

	viper.SetDefault("quota.enabled", true)
	viper.SetDefault("quota.debug", false)
	viper.SetDefault("quota.dailylimit", 10)

	viper.SetDefault("vision.provider", "anthropic")
	viper.SetDefault("vision.debug", false)
	viper.SetDefault("vision.model", "claude-sonnet-4-5-20250929")
	viper.SetDefault("vision.maxtokens", 2048)
	viper.SetDefault("vision.timeout", 60)
	viper.SetDefault("vision.requestsperminute", 20)
	viper.SetDefault("vision.log.enabled", false)
	viper.SetDefault("vision.log.path", "vision.log")

	viper.SetDefault("reconciler.debug", false)
	viper.SetDefault("reconciler.confidencethreshold", 0.7)
	viper.SetDefault("reconciler.autocreate", true)
	viper.SetDefault("reconciler.autocreatethreshold", 0.8)
	viper.SetDefault("reconciler.cachettl", 300)

	viper.SetDefault("annotate.enabled", true)
	viper.SetDefault("annotate.debug", false)
	viper.SetDefault("annotate.quality", 90)
	viper.SetDefault("annotate.linewidth", 3)

	viper.SetDefault("objectstore.type", "local")
	viper.SetDefault("objectstore.debug", false)
	viper.SetDefault("objectstore.publicurl", "http://localhost:8080/media")
	viper.SetDefault("objectstore.local.path", "photos/")
	viper.SetDefault("objectstore.ftp.port", "21")
	viper.SetDefault("objectstore.ftp.timeout", 30)
	viper.SetDefault("objectstore.sftp.port", "22")
	viper.SetDefault("objectstore.sftp.timeout", 30)

	viper.SetDefault("speciesimages.provider", "wikimedia")
	viper.SetDefault("speciesimages.debug", false)

	viper.SetDefault("location.latitude", 0.000)
	viper.SetDefault("location.longitude", 0.000)

	viper.SetDefault("integrations.mqtt.enabled", false)
	viper.SetDefault("integrations.mqtt.debug", false)
	viper.SetDefault("integrations.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("integrations.mqtt.topic", "reefey/sightings")
	viper.SetDefault("integrations.mqtt.username", "")
	viper.SetDefault("integrations.mqtt.password", "")
	viper.SetDefault("integrations.mqtt.retain", false)

	viper.SetDefault("integrations.notification.enabled", false)
	viper.SetDefault("integrations.notification.debug", false)
	viper.SetDefault("integrations.notification.urls", []string{})

	viper.SetDefault("integrations.telemetry.enabled", false)
	viper.SetDefault("integrations.telemetry.debug", false)
	viper.SetDefault("integrations.telemetry.dsn", "")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.port", "8080")

	viper.SetDefault("webserver.log.enabled", false)
	viper.SetDefault("webserver.log.path", "webserver.log")
	viper.SetDefault("webserver.log.rotation", RotationDaily)
	viper.SetDefault("webserver.log.maxsize", 1048576)
	viper.SetDefault("webserver.log.rotationday", time.Sunday)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "reefey.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "reefey")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "reefey")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", 3306)
}
