// Package patch rewrites a fetched core configuration so the selected core
// can load it and the bundled dashboard can reach it.
package patch

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"crash/internal/config"
)

// DefaultTun is appended to Mihomo configs that carry no tun section.
const DefaultTun = `
# Crash default tun
tun:
  enable: true
  device: Meta
  stack: gVisor
  dns-hijack:
    - 0.0.0.0:53
  auto-route: true
  auto-detect-interface: true
  gso-max-size: 65536
  file-descriptor: 0
  recvmsgx: true
`

const ruleSet = "- 'RULE-SET,"

// Config returns raw patched for core. It never fails: input it cannot
// understand is returned unchanged.
func Config(core config.Core, web config.WebConfig, raw string) string {
	switch core {
	case config.CoreMihomo:
		return mihomo(raw)
	case config.CoreClash:
		return clash(raw)
	case config.CoreSingbox:
		return singbox(web, raw)
	default:
		return raw
	}
}

func mihomo(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(line, "tun") {
			return raw
		}
	}
	return raw + "\n" + DefaultTun
}

// clash comments out RULE-SET rules, which legacy Clash cannot parse.
// Rules already commented are left alone.
func clash(raw string) string {
	var b strings.Builder
	b.Grow(len(raw) + 16)

	rest := raw
	for {
		i := strings.Index(rest, ruleSet)
		if i < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:i])
		if i == 0 || rest[i-1] != '#' {
			b.WriteByte('#')
		}
		b.WriteString(ruleSet)
		rest = rest[i+len(ruleSet):]
	}
}

func singbox(web config.WebConfig, raw string) string {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var root map[string]any
	if err := dec.Decode(&root); err != nil || root == nil {
		return raw
	}

	// sing-box decodes server_port into a uint16 and rejects strings.
	if outbounds, ok := root["outbounds"].([]any); ok {
		for _, o := range outbounds {
			ob, ok := o.(map[string]any)
			if !ok {
				continue
			}
			s, ok := ob["server_port"].(string)
			if !ok {
				continue
			}
			if n, err := strconv.ParseUint(s, 10, 64); err == nil {
				ob["server_port"] = json.Number(strconv.FormatUint(n, 10))
			}
		}
	}

	merge(root, map[string]any{
		"experimental": map[string]any{
			"cache_file": map[string]any{
				"enabled": true,
			},
			"clash_api": map[string]any{
				"external_controller": web.Host,
				"external_ui":         web.UI.String(),
				"secret":              web.Secret,
			},
		},
	})

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(root); err != nil {
		return raw
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// merge copies keys of src missing from dst, recursing into objects present
// in both. Existing values in dst are never replaced.
func merge(dst, src map[string]any) {
	for k, sv := range src {
		dv, ok := dst[k]
		if !ok {
			dst[k] = sv
			continue
		}
		dm, dok := dv.(map[string]any)
		sm, sok := sv.(map[string]any)
		if dok && sok {
			merge(dm, sm)
		}
	}
}
