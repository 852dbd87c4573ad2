package cli

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bindFlag binds a flag onto a viper key. The flag only wins when it was set
// on the command line.
func bindFlag(v *viper.Viper, key string, f *pflag.Flag) {
	if f == nil {
		panic("bind flag: unknown flag for " + key)
	}
	if err := v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}
