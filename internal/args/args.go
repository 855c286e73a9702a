package args

import (
	"flag"
	"fmt"
)

type Args struct {
	ConfigFilePath string
	ProjectDir     string
	DistDir        string
	Task           string
	NumWorkers     int
	RemoteHost     string
	RemoteUser     string
	RemotePass     string
	RemoteKey      string
	DryRun         bool
	SkipInstall    bool
	SkipChecks     bool
	Publish        bool
	Wait           bool
}

func ParseArgs() *Args {
	configFilePath := flag.String("config", "", "Path to the build manifest (optional, the embedded default is used otherwise)")
	flag.StringVar(configFilePath, "c", *configFilePath, "Path to the build manifest (short)")

	projectDir := flag.String("project", ".", "Path to the Python project to package")
	flag.StringVar(projectDir, "p", *projectDir, "Path to the Python project to package (short)")

	distDir := flag.String("dist", "", "Override the manifest's dist directory")

	task := flag.String("task", "build", "Task to run: build, clean, doctor or lint")
	flag.StringVar(task, "t", *task, "Task to run (short)")

	numWorkers := flag.Int("workers", 2, "Number of targets to build concurrently")
	flag.IntVar(numWorkers, "w", *numWorkers, "Number of targets to build concurrently (short)")

	// SSH-related flags for remote builders
	remoteHost := flag.String("remote", "", "Remote builder to run pip and PyInstaller on (optional)")
	remoteUser := flag.String("user", "", "Remote user for SSH connection")
	remotePass := flag.String("password", "", "Remote password for SSH connection")
	remoteKey := flag.String("key", "", "Path to SSH private key file (optional)")

	dryRun := flag.Bool("dry-run", false, "Print the commands that would run without running them")
	skipInstall := flag.Bool("skip-install", false, "Skip the pip install step")
	skipChecks := flag.Bool("skip-checks", false, "Skip preflight checks")
	publish := flag.Bool("publish", false, "Upload finished artifacts to the registry from the manifest")
	wait := flag.Bool("wait", false, "Wait for Enter before exiting")

	flag.Usage = func() {
		fmt.Printf("Usage: %s [options]\n", flag.CommandLine.Name())
		fmt.Printf("       %s serve [options]\n", flag.CommandLine.Name())
		fmt.Println("Options:")
		flag.PrintDefaults()
	}

	flag.Parse()

	return &Args{
		ConfigFilePath: *configFilePath,
		ProjectDir:     *projectDir,
		DistDir:        *distDir,
		Task:           *task,
		NumWorkers:     *numWorkers,
		RemoteHost:     *remoteHost,
		RemoteUser:     *remoteUser,
		RemotePass:     *remotePass,
		RemoteKey:      *remoteKey,
		DryRun:         *dryRun,
		SkipInstall:    *skipInstall,
		SkipChecks:     *skipChecks,
		Publish:        *publish,
		Wait:           *wait,
	}
}
