// Package config loads algorithm parameters for the command line tools from
// a config file and the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"histokit/internal/param"
	"histokit/internal/registration"
	"histokit/internal/stain"
)

// Section names in config files; env variables use them as the second word,
// e.g. HISTOKIT_REGISTRATION_NUM_ITER.
const (
	SectionRegistration  = "registration"
	SectionDeconvolution = "deconvolution"
)

// Config holds the settings shared by the tools.
type Config struct {
	LogLevel      string
	Seed          int64
	Registration  []param.Assignment
	Deconvolution []param.Assignment
}

var sections = map[string]param.Schema{
	SectionRegistration:  registration.Schema(),
	SectionDeconvolution: stain.Schema(),
}

// Load reads path (yaml, json or toml, by extension) and the environment.
// Env var overrides use prefix HISTOKIT_. An empty path falls back to
// $HISTOKIT_CONFIG and then to no file at all.
//
// Parameter values are not validated here; the assignments are meant for
// param.Config.Update, which reports unknown names and bad values.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("seed", 1)

	if path == "" {
		path = os.Getenv("HISTOKIT_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("HISTOKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for section, schema := range sections {
		for _, spec := range schema {
			if err := v.BindEnv(section + "." + spec.Name); err != nil {
				return Config{}, fmt.Errorf("bind env %s.%s: %w", section, spec.Name, err)
			}
		}
	}

	return Config{
		LogLevel:      v.GetString("log.level"),
		Seed:          v.GetInt64("seed"),
		Registration:  assignments(v, SectionRegistration),
		Deconvolution: assignments(v, SectionDeconvolution),
	}, nil
}

// assignments collects every key set under section, ordered by name.
// Strings, as env variables always are, go through param.ParseValue.
func assignments(v *viper.Viper, section string) []param.Assignment {
	prefix := section + "."
	values := make(map[string]any)
	for _, key := range v.AllKeys() {
		if !strings.HasPrefix(key, prefix) || !v.IsSet(key) {
			continue
		}
		value := v.Get(key)
		if s, ok := value.(string); ok {
			value = param.ParseValue(s)
		}
		values[strings.TrimPrefix(key, prefix)] = value
	}
	return param.AssignmentsFromMap(values)
}
