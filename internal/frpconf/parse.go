package frpconf

import "strings"

const (
	proxyMarker = "[[proxies]]"
	authMarker  = "[auth]"
)

type section int

const (
	sectionNone section = iota
	sectionAuth
	sectionProxy
	sectionOther
)

type lineKind int

const (
	lineBlank lineKind = iota
	lineComment
	lineProxyMarker
	lineAuthMarker
	lineOtherMarker
	// lineProxyTable is a sub-table of the current proxy, such as
	// [proxies.plugin].
	lineProxyTable
	lineKeyValue
	lineJunk
)

// classify looks at one raw line. key and value are only set for
// lineKeyValue.
func classify(raw string) (kind lineKind, key, value string) {
	line := strings.TrimSpace(raw)
	switch {
	case line == "":
		return lineBlank, "", ""
	case strings.HasPrefix(line, "#"):
		return lineComment, "", ""
	case line == proxyMarker:
		return lineProxyMarker, "", ""
	case line == authMarker:
		return lineAuthMarker, "", ""
	case isBracketed(line) && (strings.HasPrefix(line, "[proxies.") || strings.HasPrefix(line, "[[proxies.")):
		return lineProxyTable, "", ""
	case isBracketed(line):
		return lineOtherMarker, "", ""
	}
	k, v, ok := strings.Cut(line, "=")
	if !ok {
		return lineJunk, "", ""
	}
	k = strings.TrimSpace(k)
	if k == "" {
		return lineJunk, "", ""
	}
	return lineKeyValue, k, unquote(v)
}

func isBracketed(line string) bool {
	return strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]")
}

// unquote returns the scalar inside v. Quoted values lose their quotes;
// bare values lose any trailing comment.
func unquote(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if q := v[0]; q == '"' || q == '\'' {
		if end := strings.IndexByte(v[1:], q); end >= 0 {
			return v[1 : end+1]
		}
		return strings.Trim(v, "\"'")
	}
	if i := strings.IndexByte(v, '#'); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(strings.Trim(v, "\"'"))
}

// Parse builds a Document from raw text. Lines it does not understand are
// skipped, so Parse never fails.
func Parse(text string) *Document {
	doc := &Document{Proxies: []ProxyEntry{}}
	sec := sectionNone
	var current *ProxyEntry

	flush := func() {
		if current != nil {
			doc.Proxies = append(doc.Proxies, *current)
			current = nil
		}
	}

	for _, raw := range strings.Split(text, "\n") {
		kind, key, value := classify(raw)
		switch kind {
		case lineProxyMarker:
			flush()
			current = &ProxyEntry{}
			sec = sectionProxy
		case lineAuthMarker:
			flush()
			sec = sectionAuth
		case lineOtherMarker, lineProxyTable:
			flush()
			sec = sectionOther
		case lineKeyValue:
			switch sec {
			case sectionProxy:
				current.Set(key, value)
			case sectionAuth:
				setAuth(&doc.ServerInfo, key, value)
			case sectionNone:
				switch key {
				case "serverAddr":
					doc.ServerInfo.ServerAddr = value
				case "serverPort":
					doc.ServerInfo.ServerPort = value
				case "auth.method":
					setAuth(&doc.ServerInfo, "method", value)
				case "auth.token":
					setAuth(&doc.ServerInfo, "token", value)
				}
			}
		}
	}
	flush()

	doc.ServerInfo.normalize()
	return doc
}

func setAuth(s *ServerInfo, key, value string) {
	switch key {
	case "method":
		s.AuthMethod = AuthMethod(value)
	case "token":
		s.Token = value
	}
}
