package conf

import (
	"github.com/spf13/viper"
)

// setDefaults sets the default values for the configuration.
func setDefaults() {
	viper.SetDefault("debug", false)
	viper.SetDefault("httptimeout", "30s")

	viper.SetDefault("location.latitude", 40.665535)
	viper.SetDefault("location.longitude", -73.969749)
	viper.SetDefault("location.distancekm", 1)
	viper.SetDefault("location.backdays", 1)

	viper.SetDefault("ebird.baseurl", "https://api.ebird.org/v2")

	viper.SetDefault("lists.dir", "my_bird_lists")
	viper.SetDefault("lists.lifelist", "my_bird_lists/life_list.csv")

	viper.SetDefault("notify.subject", "Birds to Add to Your Life List")
	viper.SetDefault("notify.maxdisplay", 10)

	viper.SetDefault("narrative.endpoint", "https://api.openai.com/v1/chat/completions")
	viper.SetDefault("narrative.model", "o4-mini")
}
