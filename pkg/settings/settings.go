// Package settings holds the typed configuration of the shinkai tools.
package settings

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/shinkai/pkg/api"
	"github.com/go-go-golems/shinkai/pkg/conversation"
	"github.com/go-go-golems/shinkai/pkg/security"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type NodeSettings struct {
	Address        string         `yaml:"address"`
	APIToken       string         `yaml:"api_token,omitempty"`
	Timeout        *time.Duration `yaml:"-"`
	TimeoutSeconds *int           `yaml:"timeout,omitempty"`
	// AllowInsecureRemote permits plain http to a node outside the local
	// networks.
	AllowInsecureRemote bool `yaml:"allow_insecure_remote,omitempty"`
}

// UnmarshalYAML reads timeout as a number of seconds.
func (ns *NodeSettings) UnmarshalYAML(value *yaml.Node) error {
	type Alias NodeSettings
	if err := value.Decode((*Alias)(ns)); err != nil {
		return err
	}
	if ns.TimeoutSeconds != nil {
		t := time.Duration(*ns.TimeoutSeconds) * time.Second
		ns.Timeout = &t
	}
	return nil
}

func (ns *NodeSettings) SetTimeout(d time.Duration) {
	secs := int(d.Seconds())
	ns.Timeout = &d
	ns.TimeoutSeconds = &secs
}

func (ns *NodeSettings) Validate() error {
	if ns.Address == "" {
		return errors.New("node address is required")
	}
	if err := security.ValidateNodeAddress(ns.Address, security.NodeAddressOptions{
		AllowInsecureRemote: ns.AllowInsecureRemote,
	}); err != nil {
		return err
	}
	if ns.Timeout != nil && *ns.Timeout <= 0 {
		return errors.Errorf("timeout must be positive, got %s", *ns.Timeout)
	}
	return nil
}

// ClientOptions returns the api.Client options these settings imply.
func (ns *NodeSettings) ClientOptions() []api.ClientOption {
	var ret []api.ClientOption
	if ns.Timeout != nil {
		ret = append(ret, api.WithTimeout(*ns.Timeout))
	}
	return ret
}

type ConversationSettings struct {
	PageSize        int           `yaml:"page_size"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	RefreshEnabled  bool          `yaml:"refresh_enabled"`
	CursorStrategy  string        `yaml:"cursor_strategy"`
}

func (cs *ConversationSettings) Validate() error {
	if cs.PageSize <= 0 {
		return errors.Errorf("page size must be positive, got %d", cs.PageSize)
	}
	if cs.RefreshInterval <= 0 {
		return errors.Errorf("refresh interval must be positive, got %s", cs.RefreshInterval)
	}
	if _, err := conversation.ParseCursorStrategy(cs.CursorStrategy); err != nil {
		return err
	}
	return nil
}

// ControllerOptions returns the conversation.Controller options these
// settings imply. The settings must be valid.
func (cs *ConversationSettings) ControllerOptions() []conversation.Option {
	strategy, _ := conversation.ParseCursorStrategy(cs.CursorStrategy)
	return []conversation.Option{
		conversation.WithPageSize(cs.PageSize),
		conversation.WithRefreshInterval(cs.RefreshInterval),
		conversation.WithRefreshEnabled(cs.RefreshEnabled),
		conversation.WithCursorStrategy(strategy),
	}
}

type ArchiveSettings struct {
	Path           string `yaml:"path"`
	ExportTemplate string `yaml:"export_template"`
}

// ExpandedPath returns Path with a leading ~ replaced by the home directory.
func (as *ArchiveSettings) ExpandedPath() (string, error) {
	if as.Path == "~" || strings.HasPrefix(as.Path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "could not find home directory")
		}
		return filepath.Join(home, strings.TrimPrefix(as.Path, "~")), nil
	}
	return as.Path, nil
}

type Settings struct {
	Node         *NodeSettings         `yaml:"node"`
	Conversation *ConversationSettings `yaml:"conversation"`
	Archive      *ArchiveSettings      `yaml:"archive"`
}

// NewSettings returns the default settings.
func NewSettings() *Settings {
	ret := &Settings{}
	if err := yaml.Unmarshal(defaultsYAML, ret); err != nil {
		panic(errors.Wrap(err, "invalid embedded defaults"))
	}
	return ret
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

func (s *Settings) Validate() error {
	if err := s.Node.Validate(); err != nil {
		return errors.Wrap(err, "node")
	}
	if err := s.Conversation.Validate(); err != nil {
		return errors.Wrap(err, "conversation")
	}
	return nil
}

// Redacted returns a copy safe to print.
func (s *Settings) Redacted() *Settings {
	ret := s.Clone()
	if ret.Node.APIToken != "" {
		ret.Node.APIToken = "***"
	}
	return ret
}

// Viper keys read by FromViper. The command line flags use the same names.
const (
	KeyNodeAddress         = "node-address"
	KeyAPIToken            = "api-token"
	KeyTimeout             = "timeout"
	KeyAllowInsecureRemote = "allow-insecure-remote"
	KeyPageSize            = "page-size"
	KeyRefreshInterval     = "refresh-interval"
	KeyRefreshEnabled      = "refresh-enabled"
	KeyCursorStrategy      = "cursor-strategy"
	KeyArchivePath         = "archive-path"
	KeyExportTemplate      = "export-template"
)

// Overlay replaces the values of s that are set in v.
func (s *Settings) Overlay(v *viper.Viper) {
	if v.IsSet(KeyNodeAddress) {
		s.Node.Address = strings.TrimRight(v.GetString(KeyNodeAddress), "/")
	}
	if v.IsSet(KeyAPIToken) {
		s.Node.APIToken = v.GetString(KeyAPIToken)
	}
	if v.IsSet(KeyTimeout) {
		s.Node.SetTimeout(v.GetDuration(KeyTimeout))
	}
	if v.IsSet(KeyAllowInsecureRemote) {
		s.Node.AllowInsecureRemote = v.GetBool(KeyAllowInsecureRemote)
	}
	if v.IsSet(KeyPageSize) {
		s.Conversation.PageSize = v.GetInt(KeyPageSize)
	}
	if v.IsSet(KeyRefreshInterval) {
		s.Conversation.RefreshInterval = v.GetDuration(KeyRefreshInterval)
	}
	if v.IsSet(KeyRefreshEnabled) {
		s.Conversation.RefreshEnabled = v.GetBool(KeyRefreshEnabled)
	}
	if v.IsSet(KeyCursorStrategy) {
		s.Conversation.CursorStrategy = v.GetString(KeyCursorStrategy)
	}
	if v.IsSet(KeyArchivePath) {
		s.Archive.Path = v.GetString(KeyArchivePath)
	}
	if v.IsSet(KeyExportTemplate) {
		s.Archive.ExportTemplate = v.GetString(KeyExportTemplate)
	}
}

// FromViper overlays the values set in v on the defaults and validates the
// result.
func FromViper(v *viper.Viper) (*Settings, error) {
	ret := NewSettings()
	ret.Overlay(v)
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

// LoadFile reads a YAML settings file over the defaults. The result is not
// validated, since flags may still override it.
func LoadFile(path string) (*Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", path)
	}
	ret := NewSettings()
	if err := yaml.Unmarshal(b, ret); err != nil {
		return nil, errors.Wrapf(err, "could not parse %s", path)
	}

	// empty sections decode to nil
	defaults := NewSettings()
	if ret.Node == nil {
		ret.Node = defaults.Node
	}
	if ret.Conversation == nil {
		ret.Conversation = defaults.Conversation
	}
	if ret.Archive == nil {
		ret.Archive = defaults.Archive
	}
	return ret, nil
}
