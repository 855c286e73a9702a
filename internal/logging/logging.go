// internal/logging/logging.go
package logging

import (
	websocket "PBW/internal/ws"
	"io"
	"log"
	"os"
	"sync"
)

// InfoLogger through SuccessLogger carry the pipeline's own status lines.
// ToolLogger carries the output of the tools the pipeline runs (pip,
// PyInstaller), which is high-volume and styled apart so operators can
// tell the wrapper from the wrapped.
var (
	InfoLogger    *log.Logger
	WarningLogger *log.Logger
	ErrorLogger   *log.Logger
	SuccessLogger *log.Logger
	ToolLogger    *log.Logger
	once          sync.Once
)

const (
	InfoColor    = "\033[34m" // blue
	WarningColor = "\033[33m" // yellow
	ErrorColor   = "\033[31m" // red
	ResetColor   = "\033[0m"  // reset
	SuccessColor = "\033[32m" // green
	ToolColor    = "\033[36m" // cyan
)

// WebSocketWriter mirrors every log line to the build-server websocket so
// serve-mode clients follow the pipeline live. Outside serve mode the
// broadcast goes to an empty client set and only the console write remains.
type WebSocketWriter struct {
	msgType string
	writer  io.Writer
}

func (w *WebSocketWriter) Write(p []byte) (n int, err error) {
	message := string(p)
	if len(message) > 0 {
		websocket.GetInstance().BroadcastMessage(w.msgType, message)
	}
	return w.writer.Write(p)
}

func Init() {
	once.Do(func() {
		infoWriter := &WebSocketWriter{msgType: "info", writer: os.Stdout}
		warningWriter := &WebSocketWriter{msgType: "warning", writer: os.Stdout}
		errorWriter := &WebSocketWriter{msgType: "error", writer: os.Stderr}
		successWriter := &WebSocketWriter{msgType: "success", writer: os.Stdout}
		toolWriter := &WebSocketWriter{msgType: "tool", writer: os.Stdout}

		InfoLogger = log.New(infoWriter, InfoColor+"[-] "+ResetColor, log.Ldate|log.Ltime)
		WarningLogger = log.New(warningWriter, WarningColor+"[!] "+ResetColor, log.Ldate|log.Ltime)
		ErrorLogger = log.New(errorWriter, ErrorColor+"[x] "+ResetColor, log.Ldate|log.Ltime)
		SuccessLogger = log.New(successWriter, SuccessColor+"[+] "+ResetColor, log.Ldate|log.Ltime)
		ToolLogger = log.New(toolWriter, ToolColor+"[>] "+ResetColor, log.Ldate|log.Ltime)
	})
}
