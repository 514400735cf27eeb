package frpconf

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// AddProxy splices a new [[proxies]] block into text directly after the last
// line of proxy content. Everything before the insertion point is left
// byte-for-byte intact. Without any proxy content the block is appended at
// the end of the document.
func AddProxy(text string, p ProxyEntry) (string, error) {
	if err := ValidateProxy(p); err != nil {
		return "", err
	}
	for _, existing := range Parse(text).Proxies {
		if existing.Name() == p.Name() {
			return "", &ValidationError{Field: FieldName, Reason: fmt.Sprintf("%q is already in use", p.Name())}
		}
	}

	lines := strings.Split(text, "\n")
	anchor := lastProxyLine(lines)
	if anchor < 0 {
		return appendBlock(text, p), nil
	}

	eol := ""
	if strings.HasSuffix(lines[anchor], "\r") {
		eol = "\r"
	}
	block := append([]string{"", proxyMarker}, fieldLines(p)...)
	for i := range block {
		block[i] += eol
	}
	lines = slices.Insert(lines, anchor+1, block...)
	return strings.Join(lines, "\n"), nil
}

// lastProxyLine returns the index of the last [[proxies]] marker or key line
// inside a proxy block, or -1. A proxy's sub-tables belong to its block.
// Comments and blank lines never anchor.
func lastProxyLine(lines []string) int {
	anchor := -1
	sec := sectionNone
	for i, raw := range lines {
		switch kind, _, _ := classify(raw); kind {
		case lineProxyMarker:
			sec = sectionProxy
			anchor = i
		case lineProxyTable:
			if sec == sectionProxy {
				anchor = i
			} else {
				sec = sectionOther
			}
		case lineAuthMarker, lineOtherMarker:
			sec = sectionOther
		case lineKeyValue:
			if sec == sectionProxy {
				anchor = i
			}
		}
	}
	return anchor
}

func appendBlock(text string, p ProxyEntry) string {
	eol := "\n"
	if strings.Contains(text, "\r\n") {
		eol = "\r\n"
	}

	var b strings.Builder
	b.WriteString(text)
	if text != "" {
		if !strings.HasSuffix(text, "\n") {
			b.WriteString(eol)
		}
		if strings.TrimSpace(text) != "" {
			b.WriteString(eol)
		}
	}
	b.WriteString(proxyMarker + eol)
	for _, l := range fieldLines(p) {
		b.WriteString(l + eol)
	}
	return b.String()
}

// DeleteProxy removes the index-th proxy block from text. The block runs
// from its marker, through any of its sub-tables, up to but not including
// the next bracketed line, or to the end of the document. All other lines are copied through unchanged.
func DeleteProxy(text string, index int) (string, ProxyEntry, error) {
	doc := Parse(text)
	if index < 0 || index >= len(doc.Proxies) {
		return "", ProxyEntry{}, &ValidationError{
			Field:  "index",
			Reason: fmt.Sprintf("%d is out of range (%d proxies)", index, len(doc.Proxies)),
			Err:    ErrProxyIndex,
		}
	}
	deleted := doc.Proxies[index]

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	seen := 0
	suppressing := false
	for _, raw := range lines {
		kind, _, _ := classify(raw)
		if kind == lineProxyMarker {
			suppressing = seen == index
			seen++
			if suppressing {
				continue
			}
		} else if suppressing && (kind == lineAuthMarker || kind == lineOtherMarker) {
			suppressing = false
		}
		if !suppressing {
			out = append(out, raw)
		}
	}

	result := strings.Join(out, "\n")
	if strings.HasSuffix(text, "\n") && result != "" && !strings.HasSuffix(result, "\n") {
		result += "\n"
	}
	return result, deleted, nil
}

// ReplaceServerConfig regenerates the whole document from the proxies found
// in text and the given server settings. Unknown proxy fields, comments and
// other sections do not survive.
func ReplaceServerConfig(text string, s ServerInfo) (string, error) {
	if err := ValidateServerInfo(s); err != nil {
		return "", err
	}
	doc := Parse(text)
	s.normalize()
	doc.ServerInfo = s
	return Render(doc), nil
}

// Render writes doc in canonical form: server scalars, the [auth] block when
// token auth is configured, then every proxy with the required fields only.
func Render(doc *Document) string {
	var b strings.Builder
	s := doc.ServerInfo

	fmt.Fprintf(&b, "serverAddr = %s\n", quote(s.ServerAddr))
	fmt.Fprintf(&b, "serverPort = %s\n", scalar(s.ServerPort, true))

	if s.AuthMethod == AuthToken && s.Token != "" {
		b.WriteString("\n" + authMarker + "\n")
		fmt.Fprintf(&b, "method = %s\n", quote(string(AuthToken)))
		fmt.Fprintf(&b, "token = %s\n", quote(s.Token))
	}

	for _, p := range doc.Proxies {
		b.WriteString("\n" + proxyMarker + "\n")
		for _, k := range RequiredProxyFields {
			v, ok := p.Get(k)
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "%s = %s\n", k, scalar(v, numericFields[k]))
		}
	}
	return b.String()
}

func fieldLines(p ProxyEntry) []string {
	lines := make([]string, 0, len(p.Fields))
	for _, f := range p.Fields {
		lines = append(lines, fmt.Sprintf("%s = %s", f.Key, fieldValue(f)))
	}
	return lines
}

// fieldValue writes ports as integers and boolean extras as TOML booleans.
func fieldValue(f Field) string {
	if !isRequiredField(f.Key) {
		switch v := strings.TrimSpace(f.Value); v {
		case "true", "false":
			return v
		}
	}
	return scalar(f.Value, numericFields[f.Key])
}

// scalar renders v as a bare integer when numeric is set and v is one,
// otherwise as a quoted string.
func scalar(v string, numeric bool) string {
	if numeric {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return strconv.Itoa(n)
		}
	}
	return quote(v)
}

func quote(v string) string {
	return `"` + v + `"`
}
