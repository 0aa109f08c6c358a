// ABOUTME: Shared runtime glue for ordersync CLI processes.
// ABOUTME: Resolves options, builds the logger, and wires the purchase sync graph.
package appcli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"ordersync/purchase"
)

// Options wires shared CLI runtime bits.
type Options struct {
	ServerURL string
	Token     string
	DeviceID  string
	DBPath    string
	LogFile   string // optional rotating file sink
	Verbose   bool
}

// App glues the purchase library to a CLI process. All fields are ready to
// use after NewApp; Close releases them.
type App struct {
	Store  *purchase.Store
	Client *purchase.Client
	Engine *purchase.Engine
	Caches *purchase.CacheManager
	Views  *purchase.Views
	Conn   purchase.Connectivity
	Log    *zap.Logger

	opts Options
}

// NewApp opens the local store and builds the sync graph from opts. A missing
// device id is minted and persisted by the store, so every process on this
// machine reports the same one.
func NewApp(ctx context.Context, opts Options) (*App, error) {
	normalized, err := normalizeOptions(opts)
	if err != nil {
		return nil, err
	}
	log := NewLogger(normalized.LogFile, normalized.Verbose)

	store, err := purchase.OpenStore(normalized.DBPath)
	if err != nil {
		return nil, err
	}
	if normalized.DeviceID == "" {
		normalized.DeviceID, err = store.EnsureDeviceID(ctx)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	token := purchase.StaticToken(normalized.Token)
	client := purchase.NewClient(purchase.ClientConfig{
		BaseURL:  normalized.ServerURL,
		Token:    token,
		DeviceID: normalized.DeviceID,
	})
	// An empty server URL never answers the ping, so offline-only use just
	// works: reads serve local rows and sync refuses with a clear error.
	conn := purchase.NewPingProbe(normalized.ServerURL+"/business-location", 3*time.Second)
	auth := purchase.TokenAuthStatus(token)

	return &App{
		Store:  store,
		Client: client,
		Engine: purchase.NewEngine(store, client, conn, auth, log),
		Caches: purchase.NewCacheManager(store, client, conn, auth, log),
		Views:  purchase.NewViews(store, client, conn, log),
		Conn:   conn,
		Log:    log,
		opts:   normalized,
	}, nil
}

// DeviceID reports the identifier this process sends with every request.
func (a *App) DeviceID() string {
	return a.opts.DeviceID
}

// Close releases resources.
func (a *App) Close() error {
	_ = a.Log.Sync()
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// NewLogger builds the CLI logger: human-readable warnings and up on stderr
// (everything with verbose), plus a JSON rotating file sink when logFile is
// set. The file sink always records debug level so a support bundle has the
// full story.
func NewLogger(logFile string, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), level),
	}

	if logFile != "" {
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.TimeKey = "timestamp"
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), sink, zapcore.DebugLevel))
	}
	return zap.New(zapcore.NewTee(cores...))
}

func normalizeOptions(opts Options) (Options, error) {
	if opts.DBPath == "" {
		opts.DBPath = filepath.Join(os.TempDir(), "ordersync.db")
	}
	if err := ensureDir(opts.DBPath); err != nil {
		return opts, err
	}
	if opts.LogFile != "" {
		if err := ensureDir(opts.LogFile); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o750)
}
