package model

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	SourceHTTP = "http"
	SourceLog  = "log"

	DefaultHTTPPort = 37420
	DefaultListen   = "127.0.0.1:37421"
	DefaultPool     = "pool.supportxmr.com:3333"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}
	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
}

type Config struct {
	Version   int           `json:"version" yaml:"version"` // fixed 0 for now
	Mining    *MiningConfig `json:"mining,omitempty" yaml:"mining,omitempty"`
	Miner     Miner         `json:"miner" yaml:"miner"`
	Telemetry Telemetry     `json:"telemetry" yaml:"telemetry"`
	Service   Service       `json:"service" yaml:"service"`
}

// Miner says where the worker executable lives and how it is run.
type Miner struct {
	Path        string   `json:"path,omitempty" yaml:"path,omitempty"` // explicit executable, overrides dir
	Dir         string   `json:"dir" yaml:"dir"`                       // base of binaries/xmrig
	HTTPPort    int      `json:"http_port" yaml:"http_port"`
	StopTimeout string   `json:"stop_timeout" yaml:"stop_timeout"`
	Env         []string `json:"env,omitempty" yaml:"env,omitempty"` // KEY=VALUE added to the worker environment
}

type Telemetry struct {
	Source      string `json:"source" yaml:"source"` // "http" | "log"
	Interval    string `json:"interval" yaml:"interval"`
	MaxInterval string `json:"max_interval" yaml:"max_interval"`
}

type Service struct {
	Verbose bool   `json:"verbose" yaml:"verbose"`
	Listen  string `json:"listen" yaml:"listen"` // control API address
}

// DefaultConfig is the configuration stored on the first run.
func DefaultConfig() Config {
	threads := max(runtime.NumCPU()-1, 1)
	return Config{
		Mining: &MiningConfig{
			PoolURL:    DefaultPool,
			WorkerName: DefaultWorkerName,
			Threads:    threads,
			CoinType:   "monero",
			Algorithm:  "rx/0",
		},
		Miner: Miner{
			Dir:         ".",
			HTTPPort:    DefaultHTTPPort,
			StopTimeout: "2s",
		},
		Telemetry: Telemetry{
			Source:      SourceHTTP,
			Interval:    "2s",
			MaxInterval: "30s",
		},
		Service: Service{
			Listen: DefaultListen,
		},
	}
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("xmrigminer.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),
		cue.Concrete(true),
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}
	if out.Version != 0 {
		return Config{}, fmt.Errorf("config version %d is not supported, expected 0", out.Version)
	}
	return out, nil
}

// StopTimeoutDuration is how long a terminated worker gets before it is killed.
func (m Miner) StopTimeoutDuration() (time.Duration, error) {
	return ParseCueDuration(m.StopTimeout)
}

// Intervals returns the regular poll interval and the backoff cap.
func (t Telemetry) Intervals() (interval, maxInterval time.Duration, err error) {
	interval, err = ParseCueDuration(t.Interval)
	if err != nil {
		return 0, 0, fmt.Errorf("telemetry.interval: %w", err)
	}
	maxInterval, err = ParseCueDuration(t.MaxInterval)
	if err != nil {
		return 0, 0, fmt.Errorf("telemetry.max_interval: %w", err)
	}
	if maxInterval < interval {
		maxInterval = interval
	}
	return interval, maxInterval, nil
}
