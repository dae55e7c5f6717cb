package config

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

const (
	// DefaultHost listens on every interface
	DefaultHost = "0.0.0.0"
	// DefaultPort is the master server port
	DefaultPort uint16 = 15940
)

var (
	// ErrAbort signals that startup must stop without running the service.
	ErrAbort = errors.New("startup aborted")
	// ErrNoNetworkAdapter is returned when no IPv4 address exists on the machine.
	ErrNoNetworkAdapter = errors.New("no network adapters with an IPv4 address in the system")
)

// Configuration is the resolved startup configuration
type Configuration struct {
	Host        string
	Port        uint16
	RatingRange int
	Daemon      bool
}

// Address returns host:port
func (c *Configuration) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Options holds the raw command line values
type Options struct {
	Port       string
	Host       string
	EloRange   int
	Daemon     bool
	ConfigPath string
}

// LineReader reads one line of operator input. io.EOF marks end of input.
type LineReader interface {
	ReadLine() (string, error)
}

// NewFlagSet registers the startup flags on a new flag set bound to opts
func NewFlagSet(opts *Options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("masterserver", pflag.ContinueOnError)
	fs.StringVarP(&opts.Port, "port", "p", strconv.Itoa(int(DefaultPort)), "The port the server will listen on")
	fs.StringVarP(&opts.Host, "host", "h", DefaultHost, "The ip address the server will listen on")
	fs.IntVarP(&opts.EloRange, "elorange", "e", 0, "Elo range used to filter hosts, 0 disables filtering")
	fs.BoolVarP(&opts.Daemon, "daemon", "d", false, "Run without prompts or console commands")
	fs.StringVarP(&opts.ConfigPath, "config", "c", "", "Settings file (default $CONFIG_PATH or "+defaultSettingsPath+")")
	return fs
}

// ParsePort parses a 16-bit port. Anything unparseable or out of range
// resolves to DefaultPort.
func ParsePort(value string) uint16 {
	port, err := strconv.ParseUint(strings.TrimSpace(value), 10, 16)
	if err != nil {
		return DefaultPort
	}
	return uint16(port)
}

// Resolver turns Options into a Configuration, prompting the operator for
// values left at their defaults unless running as a daemon.
type Resolver struct {
	In        LineReader
	Out       io.Writer
	LocalAddr func() (string, error)
}

// NewResolver creates a resolver that prompts on in/out
func NewResolver(in LineReader, out io.Writer) *Resolver {
	return &Resolver{
		In:        in,
		Out:       out,
		LocalAddr: LocalIPv4,
	}
}

// Resolve produces the immutable startup configuration
func (r *Resolver) Resolve(opts *Options) (*Configuration, error) {
	if opts == nil {
		opts = &Options{Host: DefaultHost}
	}

	if opts.EloRange < 0 {
		return nil, fmt.Errorf("%w: elorange must not be negative", ErrAbort)
	}

	cfg := &Configuration{
		Host:        strings.TrimSpace(opts.Host),
		Port:        ParsePort(opts.Port),
		RatingRange: opts.EloRange,
		Daemon:      opts.Daemon,
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}

	if cfg.Daemon {
		return cfg, nil
	}

	if cfg.Host == DefaultHost {
		local, err := r.localAddr()
		if err != nil {
			return nil, err
		}
		r.printf("Entering nothing will choose defaults.\n")
		r.printf("Enter Host IP (Default: %s):\n", local)
		if read := r.readLine(); read != "" {
			cfg.Host = read
		} else {
			cfg.Host = local
		}
	}

	if cfg.Port == DefaultPort {
		r.printf("Enter Port (Default: %d):\n", DefaultPort)
		if read := r.readLine(); read != "" {
			cfg.Port = ParsePort(read)
		}
	}

	return cfg, nil
}

func (r *Resolver) localAddr() (string, error) {
	if r.LocalAddr == nil {
		return LocalIPv4()
	}
	return r.LocalAddr()
}

// readLine returns the trimmed line, or "" on end of input or read failure.
func (r *Resolver) readLine() string {
	if r.In == nil {
		return ""
	}
	line, err := r.In.ReadLine()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

func (r *Resolver) printf(format string, args ...any) {
	if r.Out == nil {
		return
	}
	fmt.Fprintf(r.Out, format, args...)
}
