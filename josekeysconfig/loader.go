// Package josekeysconfig loads josekeys.Config from Go values, JSON files or
// sandboxed Lua scripts.
package josekeysconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/keksclan/goJoseKeys/josekeys"
	"github.com/lestrrat-go/jwx/v2/jwk"
	lua "github.com/yuin/gopher-lua"
)

// Loader loads a josekeys.Config from a source.
type Loader interface {
	Load(ctx context.Context) (*josekeys.Config, error)
}

// goLoader returns a static config.
type goLoader struct {
	cfg josekeys.Config
}

// FromGo creates a Loader that returns the provided config directly.
func FromGo(cfg josekeys.Config) Loader {
	return &goLoader{cfg: cfg}
}

func (l *goLoader) Load(_ context.Context) (*josekeys.Config, error) {
	cfg := l.cfg
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// jsonLoader loads config from a JSON file.
type jsonLoader struct {
	path string
}

// FromJSONFile creates a Loader that reads config from a JSON file.
func FromJSONFile(path string) Loader {
	return &jsonLoader{path: path}
}

// jsonConfig mirrors josekeys.Config for JSON deserialization.
type jsonConfig struct {
	JWKS          json.RawMessage   `json:"jwks"`
	JWKSURI       string            `json:"jwks_uri"`
	CacheTTLSec   int               `json:"cache_ttl_sec"`
	CacheNoExpiry bool              `json:"cache_no_expiry"`
	Auth          jsonAuth          `json:"auth"`
	ExtraHeaders  map[string]string `json:"extra_headers"`
}

type jsonAuth struct {
	Kind        string `json:"kind"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	BearerToken string `json:"bearer_token"`
	HeaderName  string `json:"header_name"`
	HeaderValue string `json:"header_value"`
}

func (l *jsonLoader) Load(_ context.Context) (*josekeys.Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read json config: %w", err)
	}
	return LoadJSON(data)
}

// LoadJSON parses a JSON config document.
func LoadJSON(data []byte) (*josekeys.Config, error) {
	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return nil, fmt.Errorf("parse json config: %w", err)
	}

	cfg := josekeys.Config{
		JWKSURI:       jc.JWKSURI,
		CacheTTL:      time.Duration(jc.CacheTTLSec) * time.Second,
		CacheNoExpiry: jc.CacheNoExpiry,
		Auth: josekeys.AuthConfig{
			Kind:        josekeys.AuthKind(jc.Auth.Kind),
			Username:    jc.Auth.Username,
			Password:    jc.Auth.Password,
			BearerToken: jc.Auth.BearerToken,
			HeaderName:  jc.Auth.HeaderName,
			HeaderValue: jc.Auth.HeaderValue,
		},
		ExtraHeaders: jc.ExtraHeaders,
	}
	if raw := bytes.TrimSpace(jc.JWKS); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		set, err := jwk.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse jwks: %w", err)
		}
		cfg.JWKS = set
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// luaLoader loads config from a Lua file.
type luaLoader struct {
	path string
}

// FromLuaFile creates a Loader that reads config from a Lua file.
func FromLuaFile(path string) Loader {
	return &luaLoader{path: path}
}

func (l *luaLoader) Load(_ context.Context) (*josekeys.Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read lua config file: %w", err)
	}
	return LoadLuaString(string(data))
}

// LoadLuaString runs a Lua config script and maps the table it returns.
func LoadLuaString(script string) (*josekeys.Config, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	// Only open safe libs for config parsing
	for _, pair := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(pair.fn))
		L.Push(lua.LString(pair.name))
		L.Call(1, 0)
	}
	// Remove dangerous functions
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)

	if err := L.DoString(script); err != nil {
		return nil, fmt.Errorf("lua config execution: %w", err)
	}

	ret := L.Get(-1)
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("lua config must return a table, got %s", ret.Type().String())
	}

	cfg, err := luaTableToConfig(tbl)
	if err != nil {
		return nil, fmt.Errorf("lua config mapping: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func luaTableToConfig(tbl *lua.LTable) (*josekeys.Config, error) {
	cfg := &josekeys.Config{}

	cfg.JWKSURI = getStringField(tbl, "jwks_uri")
	if ttl := getNumberField(tbl, "cache_ttl_sec"); ttl > 0 {
		cfg.CacheTTL = time.Duration(ttl) * time.Second
	}
	cfg.CacheNoExpiry = getBoolField(tbl, "cache_no_expiry")
	cfg.ExtraHeaders = getStringMapField(tbl, "extra_headers")

	if authTbl := getTableField(tbl, "auth"); authTbl != nil {
		cfg.Auth = josekeys.AuthConfig{
			Kind:        josekeys.AuthKind(getStringField(authTbl, "kind")),
			Username:    getStringField(authTbl, "username"),
			Password:    getStringField(authTbl, "password"),
			BearerToken: getStringField(authTbl, "bearer_token"),
			HeaderName:  getStringField(authTbl, "header_name"),
			HeaderValue: getStringField(authTbl, "header_value"),
		}
	}

	if jwksTbl := getTableField(tbl, "jwks"); jwksTbl != nil {
		raw, err := json.Marshal(luaToGo(jwksTbl))
		if err != nil {
			return nil, fmt.Errorf("encode jwks: %w", err)
		}
		set, err := jwk.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse jwks: %w", err)
		}
		cfg.JWKS = set
	}

	return cfg, nil
}

// luaToGo converts a Lua value to plain Go values suitable for encoding/json.
// Tables with a sequence part become slices, other non-empty tables maps,
// and empty tables empty slices.
func luaToGo(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case lua.LBool:
		return bool(val)
	case *lua.LTable:
		if n := val.MaxN(); n > 0 {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, luaToGo(val.RawGetInt(i)))
			}
			return out
		}
		m := make(map[string]any)
		val.ForEach(func(k, item lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = luaToGo(item)
			}
		})
		if len(m) == 0 {
			return []any{}
		}
		return m
	default:
		return nil
	}
}

// Lua table helper functions

func getStringField(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

func getNumberField(tbl *lua.LTable, key string) float64 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

func getBoolField(tbl *lua.LTable, key string) bool {
	v := tbl.RawGetString(key)
	if b, ok := v.(lua.LBool); ok {
		return bool(b)
	}
	return false
}

func getTableField(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

func getStringMapField(tbl *lua.LTable, key string) map[string]string {
	v := tbl.RawGetString(key)
	t, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	result := make(map[string]string)
	t.ForEach(func(k lua.LValue, val lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			if vs, ok := val.(lua.LString); ok {
				result[string(ks)] = string(vs)
			}
		}
	})
	if len(result) == 0 {
		return nil
	}
	return result
}
