package cmd

import (
	"fmt"

	"gopkg.in/yaml.v3"

	goFlags "github.com/jessevdk/go-flags"
)

// Options are the command-line arguments of the handler.  Everything about
// the listener itself comes from the configuration file and the environment.
type Options struct {
	// ConfigPath is the path to the YAML configuration file.  Without it the
	// handler is configured by LHOST, LPORT and the other variables.
	ConfigPath string `yaml:"config-path" short:"c" long:"config-path" description:"Path to the YAML config file; env variables override it." value-name:"PATH"`

	// Verbose enables DEBUG-level logging.
	Verbose bool `yaml:"verbose" short:"v" long:"verbose" description:"Verbose output (optional)." optional:"yes" optional-value:"true"`

	// Version makes the handler print its version and exit.
	Version bool `yaml:"-" short:"V" long:"version" description:"Print the version and exit."`
}

// type check
var _ fmt.Stringer = (*Options)(nil)

// String implements the fmt.Stringer interface for *Options.
func (o *Options) String() (str string) {
	b, err := yaml.Marshal(o)
	if err != nil {
		return fmt.Sprintf("options: %s", err)
	}

	return string(b)
}

// parseOptions parses the command-line arguments without the program name.
func parseOptions(args []string) (o *Options, err error) {
	o = &Options{}
	parser := goFlags.NewParser(o, goFlags.Default|goFlags.IgnoreUnknown)
	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	if len(rest) > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", rest)
	}

	return o, nil
}
