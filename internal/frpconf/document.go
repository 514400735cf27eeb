// Package frpconf reads and edits frp client configuration documents.
//
// Only the subset of TOML that frpc.toml files use in practice is understood:
// top-level scalar assignments, an [auth] block and repeated [[proxies]]
// blocks with scalar fields. Parsing is line oriented and tolerant; edits are
// either line splices that leave unrelated text alone, or a full regenerate
// for server settings.
package frpconf

import (
	"slices"
	"strconv"
	"strings"
)

type AuthMethod string

const (
	AuthNone  AuthMethod = "none"
	AuthToken AuthMethod = "token"
)

// Proxy field names, in the order they are rendered.
const (
	FieldName       = "name"
	FieldType       = "type"
	FieldLocalIP    = "localIP"
	FieldLocalPort  = "localPort"
	FieldRemotePort = "remotePort"
)

var RequiredProxyFields = []string{FieldName, FieldType, FieldLocalIP, FieldLocalPort, FieldRemotePort}

// numericFields are rendered as bare integers.
var numericFields = map[string]bool{
	FieldLocalPort:  true,
	FieldRemotePort: true,
}

type ServerInfo struct {
	ServerAddr string     `json:"serverAddr"`
	ServerPort string     `json:"serverPort"`
	AuthMethod AuthMethod `json:"authMethod"`
	Token      string     `json:"token"`
}

// normalize clears the token unless token auth is selected.
func (s *ServerInfo) normalize() {
	if s.AuthMethod == "" {
		s.AuthMethod = AuthNone
	}
	if s.AuthMethod != AuthToken {
		s.Token = ""
	}
}

type Field struct {
	Key   string
	Value string
}

// ProxyEntry is one [[proxies]] block. Fields keep the order in which they
// were read or set, including keys this package knows nothing about.
type ProxyEntry struct {
	Fields []Field
}

func (p *ProxyEntry) Get(key string) (string, bool) {
	for _, f := range p.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

func (p *ProxyEntry) Set(key, value string) {
	for i := range p.Fields {
		if p.Fields[i].Key == key {
			p.Fields[i].Value = value
			return
		}
	}
	p.Fields = append(p.Fields, Field{Key: key, Value: value})
}

func (p *ProxyEntry) Name() string {
	v, _ := p.Get(FieldName)
	return v
}

type Document struct {
	ServerInfo ServerInfo   `json:"serverInfo"`
	Proxies    []ProxyEntry `json:"proxies"`
}

func isRequiredField(key string) bool {
	return slices.Contains(RequiredProxyFields, key)
}

// ValidateProxy checks that every required field is present and that the
// port fields hold valid port numbers.
func ValidateProxy(p ProxyEntry) error {
	for _, k := range RequiredProxyFields {
		v, ok := p.Get(k)
		if !ok || strings.TrimSpace(v) == "" {
			return &ValidationError{Field: k, Reason: "is required"}
		}
	}
	for _, f := range p.Fields {
		if f.Key == "" || strings.ContainsAny(f.Key, " \t=[]\"'#") {
			return &ValidationError{Field: f.Key, Reason: "is not a valid key"}
		}
		if numericFields[f.Key] {
			if err := validatePort(f.Key, f.Value); err != nil {
				return err
			}
			continue
		}
		if err := validateScalar(f.Key, f.Value); err != nil {
			return err
		}
	}
	return nil
}

// ValidateServerInfo checks the inputs of a server settings replace.
func ValidateServerInfo(s ServerInfo) error {
	if strings.TrimSpace(s.ServerAddr) == "" {
		return &ValidationError{Field: "serverAddr", Reason: "is required"}
	}
	if strings.TrimSpace(s.ServerPort) == "" {
		return &ValidationError{Field: "serverPort", Reason: "is required"}
	}
	if err := validateScalar("serverAddr", s.ServerAddr); err != nil {
		return err
	}
	if err := validatePort("serverPort", s.ServerPort); err != nil {
		return err
	}
	switch s.AuthMethod {
	case "", AuthNone:
	case AuthToken:
		if s.Token == "" {
			return &ValidationError{Field: "token", Reason: "is required for token authentication"}
		}
		if err := validateScalar("token", s.Token); err != nil {
			return err
		}
	default:
		return &ValidationError{Field: "authMethod", Reason: "must be none or token"}
	}
	return nil
}

func validatePort(field, v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 || n > 65535 {
		return &ValidationError{Field: field, Reason: "must be a port number between 1 and 65535"}
	}
	return nil
}

// validateScalar rejects characters that cannot be written inside a basic
// string without escaping, and single quotes, which the parser strips.
func validateScalar(field, v string) error {
	if strings.ContainsAny(v, "\"'\\\r\n") {
		return &ValidationError{Field: field, Reason: "must not contain quotes, backslashes or line breaks"}
	}
	return nil
}
