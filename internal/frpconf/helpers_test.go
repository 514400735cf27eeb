package frpconf

func newProxyEntry(kv ...string) ProxyEntry {
	var p ProxyEntry
	for i := 0; i+1 < len(kv); i += 2 {
		p.Set(kv[i], kv[i+1])
	}
	return p
}
