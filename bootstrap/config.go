package bootstrap

import (
	"github.com/kbukum/pipeflow/config"
)

// Config is the constraint for application config types. A struct that
// embeds config.ServiceConfig by value gets GetServiceConfig promoted and
// only needs its own ApplyDefaults and Validate.
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Engine execution.Config `yaml:"engine" mapstructure:"engine"`
//	}
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
