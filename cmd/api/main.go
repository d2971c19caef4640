package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/persona-lab/backend/internal/app"
	"github.com/zhouzirui/persona-lab/backend/internal/config"
	"github.com/zhouzirui/persona-lab/backend/internal/handler"
)

// browserDelay gives the listener time to come up before the page is opened.
const browserDelay = 1500 * time.Millisecond

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if !cfg.AI.Enabled() {
		log.Fatalf("%s 凭证未配置，请设置 AI_PROVIDER 对应的密钥与 AI_MODEL", cfg.AI.Provider)
	}

	services, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize services: %v", err)
	}
	log.Printf("persona store at %s, %d example personas loaded", services.Personas.Root(), services.Examples.Len())

	router := handler.NewRouter(handler.Services{
		Personas:       services.Personas,
		AI:             services.AI,
		Generator:      services.Generator,
		Chat:           services.Chat,
		RequestTimeout: cfg.AI.RequestTimeout,
	})

	if cfg.Server.OpenBrowser {
		timer := time.AfterFunc(browserDelay, func() { openBrowser(cfg.Server.PublicURL) })
		defer timer.Stop()
	}

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Persona Lab backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// openBrowser 在本机默认浏览器中打开页面，失败时仅记录日志
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("[browser] failed to open %s: %v", url, err)
		return
	}
	go cmd.Wait()
}
