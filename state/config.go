package state

import (
	"github.com/encodeous/kevlar/digest"
	"github.com/encodeous/kevlar/keychain"
)

var ConfigPath = "kevlar.yaml"

type NodeId string

// TsBase selects how the TS half of the TS/PC pair advances.
type TsBase string

const (
	TsBaseZero TsBase = "zero"
	TsBaseUnix TsBase = "unixtime"
)

func (b TsBase) String() string {
	switch b {
	case TsBaseZero:
		return "NVRAM-less PC wrap counter"
	case TsBaseUnix:
		return "UNIX time w/PC wrap counter"
	}
	return string(b)
}

// CSACfg is one configured security association: a hash algorithm paired with
// the name of the key chain it signs and verifies with. The order of CSAs on
// an interface decides which keys sign when more qualify than fit a packet.
type CSACfg struct {
	Mode     digest.Algo `yaml:"mode"`
	KeyChain string      `yaml:"key_chain"`
}

type InterfaceCfg struct {
	Name           string   `yaml:"name"`
	RxAuthRequired bool     `yaml:"rx_auth_required,omitempty"`
	Auth           []CSACfg `yaml:"auth,omitempty"`
}

// LocalCfg is the node configuration, read from a single YAML file.
type LocalCfg struct {
	Id         NodeId           `yaml:"id"`
	Port       uint16           `yaml:"port,omitempty"`
	TsBase     TsBase           `yaml:"ts_base,omitempty"`
	AnmTimeout uint32           `yaml:"anm_timeout,omitempty"`
	CtlPath    string           `yaml:"ctl_path,omitempty"`
	LogPath    string           `yaml:"log_path,omitempty"`
	Interfaces []InterfaceCfg   `yaml:"interfaces"`
	KeyChains  []keychain.Chain `yaml:"key_chains,omitempty"`
}

// SetDefaults fills in the zero-valued optional fields.
func (c *LocalCfg) SetDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.TsBase == "" {
		c.TsBase = TsBaseUnix
	}
	if c.AnmTimeout == 0 {
		c.AnmTimeout = DefaultAnmTimeout
	}
	if c.CtlPath == "" {
		c.CtlPath = DefaultCtlPath
	}
}
