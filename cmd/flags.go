package cmd

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// mustBindFlags binds each config key to the named flag. A missing flag is a
// programming error, so it panics during init rather than failing later.
func mustBindFlags(flags *pflag.FlagSet, bindings map[string]string) {
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			panic(fmt.Sprintf("flag --%s is not defined", name))
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			panic(fmt.Sprintf("binding --%s to %s: %v", name, key, err))
		}
	}
}

// changedFlags lists the flags set explicitly on the command line.
func changedFlags(flags *pflag.FlagSet) []string {
	var names []string
	flags.Visit(func(f *pflag.Flag) {
		names = append(names, f.Name)
	})
	return names
}
