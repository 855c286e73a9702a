// internal/api/server.go
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"PBW/internal/args"
	"PBW/internal/crash"
	"PBW/internal/engine"
	"PBW/internal/logshot"
	websocket "PBW/internal/ws"
)

// Terminal build states as reported by /api/builds.
const (
	BuildRunning   = "Running"
	BuildSucceeded = "Succeeded"
	BuildFailed    = "Failed"
)

// BuildState is one pipeline run owned by the server. Log lines stream over
// the websocket tagged with the build ID, this record only tracks lifecycle.
type BuildState struct {
	ID          string `json:"id"`
	ProjectDir  string `json:"projectDir"`
	Status      string `json:"status"`
	ExitCode    int    `json:"exitCode"`
	Remote      string `json:"remote,omitempty"`
	DryRun      bool   `json:"dryRun"`
	CreatedAt   string `json:"createdAt"`
	CompletedAt string `json:"completedAt,omitempty"`
}

// BuildCache keeps recent builds so clients can list and inspect them.
// Finished builds are evicted after the timeout, running ones never are.
type BuildCache struct {
	builds  map[string]*BuildState
	mutex   sync.RWMutex
	timeout time.Duration
}

var buildCache = &BuildCache{
	builds:  make(map[string]*BuildState),
	timeout: 24 * time.Hour, // Finished builds stay listed for a day
}

var buildSeq atomic.Int64

func newBuildID() string {
	return fmt.Sprintf("%s_%03d", time.Now().Format("20060102_150405"), buildSeq.Add(1))
}

func (c *BuildCache) Add(state *BuildState) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.builds[state.ID] = state
}

// Get returns a copy, the original keeps changing while the build runs.
func (c *BuildCache) Get(id string) (BuildState, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	state, ok := c.builds[id]
	if !ok {
		return BuildState{}, false
	}
	return *state, true
}

// List snapshots every known build, newest first.
func (c *BuildCache) List() []BuildState {
	c.mutex.RLock()
	states := make([]BuildState, 0, len(c.builds))
	for _, state := range c.builds {
		states = append(states, *state)
	}
	c.mutex.RUnlock()

	sort.Slice(states, func(i, j int) bool {
		if states[i].CreatedAt != states[j].CreatedAt {
			return states[i].CreatedAt > states[j].CreatedAt
		}
		return states[i].ID > states[j].ID
	})
	return states
}

// Complete marks a build finished and schedules its eviction.
func (c *BuildCache) Complete(id string, exitCode int) {
	c.mutex.Lock()
	state, ok := c.builds[id]
	if ok {
		state.ExitCode = exitCode
		state.CompletedAt = time.Now().Format("2006-01-02 15:04:05")
		if exitCode == engine.ExitOK {
			state.Status = BuildSucceeded
		} else {
			state.Status = BuildFailed
		}
	}
	c.mutex.Unlock()

	go func() {
		time.Sleep(c.timeout)
		c.mutex.Lock()
		delete(c.builds, id)
		c.mutex.Unlock()
	}()
}

// BuildRequest mirrors the CLI flags for serve-mode clients.
type BuildRequest struct {
	ProjectDir     string `json:"projectDir"`
	ConfigFilePath string `json:"configFilePath,omitempty"`
	DistDir        string `json:"distDir,omitempty"`
	NumWorkers     int    `json:"numWorkers"`
	RemoteHost     string `json:"remoteHost,omitempty"`
	RemoteUser     string `json:"remoteUser,omitempty"`
	RemotePass     string `json:"remotePass,omitempty"`
	RemoteKey      string `json:"remoteKey,omitempty"`
	DryRun         bool   `json:"dryRun"`
	SkipInstall    bool   `json:"skipInstall"`
	SkipChecks     bool   `json:"skipChecks"`
	Publish        bool   `json:"publish"`
}

type Settings struct {
	DefaultProjectDir string    `json:"defaultProjectDir"`
	SSHKeyFile        string    `json:"sshKeyFile"`
	MaxWorkers        int       `json:"maxWorkers"`
	AutoClean         bool      `json:"autoClean"`
	Builders          []Builder `json:"builders"`
}

// Builder is a named remote build host clients can pick from.
type Builder struct {
	Name string `json:"name"`
	Host string `json:"host"`
	User string `json:"user"`
}

type Server struct {
	router       *gin.Engine
	wsManager    *websocket.Manager
	events       *logrus.Logger
	settingsPath string
}

// newEventLogger returns a logger whose entries also reach connected
// websocket clients, so the dashboard sees the same lifecycle messages
// that land in the server log.
func newEventLogger(manager *websocket.Manager) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})
	logger.SetLevel(logrus.InfoLevel)
	logger.AddHook(&eventHook{manager: manager})
	return logger
}

type eventHook struct {
	manager *websocket.Manager
}

func (h *eventHook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.DebugLevel,
		logrus.InfoLevel,
		logrus.WarnLevel,
		logrus.ErrorLevel,
	}
}

func (h *eventHook) Fire(entry *logrus.Entry) error {
	messageType := "info"
	switch entry.Level {
	case logrus.WarnLevel:
		messageType = "warning"
	case logrus.ErrorLevel:
		messageType = "error"
	}

	buildID, _ := entry.Data["build"].(string)
	h.manager.BroadcastBuildMessage(messageType, buildID, entry.Message)
	return nil
}

func NewServer() *Server {
	router := gin.Default()
	wsManager := websocket.GetInstance()

	// Configure CORS with WebSocket support
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // For development. In production, specify exact origin
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Sec-WebSocket-Protocol", "Sec-WebSocket-Version", "Sec-WebSocket-Key"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	server := &Server{
		router:       router,
		wsManager:    wsManager,
		events:       newEventLogger(wsManager),
		settingsPath: "pbw_settings.json",
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/ws", s.handleWebSocket)
	s.router.POST("/api/build", s.handleBuild)
	s.router.GET("/api/builds", s.handleGetBuilds)
	s.router.GET("/api/build/:id", s.handleGetBuildDetail)
	s.router.POST("/api/clean", s.handleClean)
	s.router.GET("/api/logshots", s.handleListLogshots)
	s.router.GET("/api/logshot", s.handleGetLogshot)
	s.router.GET("/api/settings", s.handleGetSettings)
	s.router.POST("/api/settings", s.handleSaveSettings)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	log.Println("WebSocket connection attempt received")

	conn, err := websocket.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	// Set read deadline for initial connection
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	wsManager := websocket.GetInstance()
	wsManager.AddClient(conn)

	defer func() {
		wsManager.RemoveClient(conn)
		log.Println("WebSocket connection closed")
	}()

	// Keep connection alive and handle messages
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				log.Printf("Unexpected close error: %v", err)
			}
			return
		}

		switch messageType {
		case websocket.PingMessage:
			if err := conn.WriteControl(websocket.PongMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				log.Printf("Error sending pong: %v", err)
				return
			}
		case websocket.TextMessage:
			if string(message) == "ping" {
				if err := conn.WriteControl(websocket.PongMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					log.Printf("Error sending pong response: %v", err)
					return
				}
			} else {
				log.Printf("Received text message: %s", string(message))
			}
		}

		// Reset read deadline after successful message
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	}
}

func (s *Server) handleBuild(c *gin.Context) {
	reporter := crash.NewReporter("crash_reports")

	var req BuildRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.ProjectDir == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "projectDir is required"})
		return
	}

	parsedArgs := &args.Args{
		ConfigFilePath: req.ConfigFilePath,
		ProjectDir:     req.ProjectDir,
		DistDir:        req.DistDir,
		Task:           "build",
		NumWorkers:     req.NumWorkers,
		RemoteHost:     req.RemoteHost,
		RemoteUser:     req.RemoteUser,
		RemotePass:     req.RemotePass,
		RemoteKey:      req.RemoteKey,
		DryRun:         req.DryRun,
		SkipInstall:    req.SkipInstall,
		SkipChecks:     req.SkipChecks,
		Publish:        req.Publish,
	}

	state := &BuildState{
		ID:         newBuildID(),
		ProjectDir: req.ProjectDir,
		Status:     BuildRunning,
		Remote:     req.RemoteHost,
		DryRun:     req.DryRun,
		CreatedAt:  time.Now().Format("2006-01-02 15:04:05"),
	}
	buildCache.Add(state)

	extra := map[string]string{
		"buildID":    state.ID,
		"projectDir": req.ProjectDir,
		"host":       req.RemoteHost,
		"clientIP":   c.ClientIP(),
	}

	go func() {
		defer reporter.RecoverWithCrashReport("BuildRequest", extra)

		s.events.WithField("build", state.ID).Infof("Build %s started for %s", state.ID, req.ProjectDir)
		exitCode := engine.RunBuild(parsedArgs)
		buildCache.Complete(state.ID, exitCode)

		if exitCode == engine.ExitOK {
			s.events.WithField("build", state.ID).Infof("Build %s succeeded", state.ID)
			s.wsManager.BroadcastBuildMessage("build_complete", state.ID, fmt.Sprintf("Build %s succeeded", state.ID))
		} else {
			s.events.WithField("build", state.ID).Errorf("Build %s finished with exit code %d", state.ID, exitCode)
		}
	}()

	c.JSON(http.StatusOK, gin.H{"message": "Build started successfully", "buildId": state.ID})
}

func (s *Server) handleGetBuilds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"builds": buildCache.List()})
}

func (s *Server) handleGetBuildDetail(c *gin.Context) {
	id := c.Param("id")
	state, ok := buildCache.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no build with id %s", id)})
		return
	}
	c.JSON(http.StatusOK, state)
}

// handleClean runs synchronously, removing a workspace takes moments and
// the client wants to know it happened.
func (s *Server) handleClean(c *gin.Context) {
	var req BuildRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.ProjectDir == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "projectDir is required"})
		return
	}

	parsedArgs := &args.Args{
		ConfigFilePath: req.ConfigFilePath,
		ProjectDir:     req.ProjectDir,
		Task:           "clean",
	}
	if code := engine.HandleMaintenance(parsedArgs); code != engine.ExitOK {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("clean finished with exit code %d", code)})
		return
	}

	s.events.Infof("Workspace cleaned for %s", req.ProjectDir)
	c.JSON(http.StatusOK, gin.H{"message": "Workspace cleaned successfully"})
}

// handleListLogshots lists the failure screenshots a build left in its
// report folder so the dashboard can show them without a shell.
func (s *Server) handleListLogshots(c *gin.Context) {
	projectDir := c.Query("projectDir")
	if projectDir == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "projectDir is required"})
		return
	}

	shots, err := logshot.ListShots(projectDir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"shots": shots})
}

func (s *Server) handleGetLogshot(c *gin.Context) {
	file := c.Query("file")
	if file == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	data, err := logshot.ReadShotBase64(file)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"file": file, "data": data})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	settings := Settings{
		DefaultProjectDir: ".",
		MaxWorkers:        2,
		AutoClean:         false,
	}

	if data, err := os.ReadFile(s.settingsPath); err == nil {
		if err := json.Unmarshal(data, &settings); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("settings file %s: %v", s.settingsPath, err)})
			return
		}
	}

	c.JSON(http.StatusOK, settings)
}

func (s *Server) handleSaveSettings(c *gin.Context) {
	var settings Settings
	if err := c.BindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := os.WriteFile(s.settingsPath, data, 0644); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.events.Info("Settings updated")
	c.JSON(http.StatusOK, gin.H{"message": "Settings saved successfully"})
}

func (s *Server) Run() error {
	s.events.Info("Build server listening on :8080, websocket at /ws")
	return s.router.Run(":8080")
}
