package service

import (
	"io"
	"log/slog"
	"time"

	"frpanel/internal/frpconf"
	"frpanel/internal/metrics"
)

// DocumentView is what a read of the configuration document returns.
type DocumentView struct {
	Data         *frpconf.Document `json:"data"`
	FilePath     string            `json:"filePath"`
	LastModified time.Time         `json:"lastModified"`
}

// ConfigService reads and edits the frpc.toml document. It holds no copy of
// the document between calls: every operation starts from the file.
//
// Concurrent edits are last-writer-wins. Two callers that read the same
// version may each write back their own result.
type ConfigService struct {
	store   *frpconf.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewConfigService(store *frpconf.Store, logger *slog.Logger, m *metrics.Metrics) *ConfigService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ConfigService{
		store:   store,
		logger:  logger.With("document", store.Path()),
		metrics: m,
	}
}

func (cs *ConfigService) Path() string {
	return cs.store.Path()
}

func (cs *ConfigService) Exists() bool {
	return cs.store.Exists()
}

func (cs *ConfigService) ReadDocument() (*DocumentView, error) {
	text, info, err := cs.store.Read()
	cs.metrics.ObserveDocumentOp("read", err)
	if err != nil {
		return nil, err
	}
	return &DocumentView{
		Data:         frpconf.Parse(text),
		FilePath:     cs.store.Path(),
		LastModified: info.ModTime(),
	}, nil
}

func (cs *ConfigService) AddProxy(p frpconf.ProxyEntry) error {
	err := cs.mutate("add_proxy", func(text string) (string, error) {
		return frpconf.AddProxy(text, p)
	})
	if err == nil {
		cs.logger.Info("proxy added", "name", p.Name())
	}
	return err
}

// DeleteProxy removes the proxy at index and returns its name.
func (cs *ConfigService) DeleteProxy(index int) (string, error) {
	var deleted frpconf.ProxyEntry
	err := cs.mutate("delete_proxy", func(text string) (string, error) {
		out, p, err := frpconf.DeleteProxy(text, index)
		deleted = p
		return out, err
	})
	if err != nil {
		return "", err
	}
	cs.logger.Info("proxy deleted", "index", index, "name", deleted.Name())
	return deleted.Name(), nil
}

func (cs *ConfigService) ReplaceServerConfig(s frpconf.ServerInfo) error {
	if err := frpconf.ValidateServerInfo(s); err != nil {
		cs.metrics.ObserveDocumentOp("replace_server", err)
		return err
	}
	err := cs.mutate("replace_server", func(text string) (string, error) {
		return frpconf.ReplaceServerConfig(text, s)
	})
	if err == nil {
		cs.logger.Info("server config replaced", "serverAddr", s.ServerAddr, "serverPort", s.ServerPort, "authMethod", s.AuthMethod)
	}
	return err
}

// mutate runs one read, edit, write cycle. Nothing is written unless the
// edit succeeds and keeps the document well formed.
func (cs *ConfigService) mutate(op string, edit func(string) (string, error)) (err error) {
	defer func() {
		cs.metrics.ObserveDocumentOp(op, err)
		if err != nil {
			cs.logger.Warn("document edit rejected", "op", op, "error", err)
		}
	}()

	before, _, err := cs.store.Read()
	if err != nil {
		return err
	}
	after, err := edit(before)
	if err != nil {
		return err
	}
	if err := frpconf.CheckSyntax(before, after); err != nil {
		return err
	}
	return cs.store.Write(after)
}
