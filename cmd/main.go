package main

import (
	"bufio"
	"fmt"
	"os"

	"PBW/internal/api"
	"PBW/internal/args"
	"PBW/internal/crash"
	"PBW/internal/engine"
	"PBW/internal/logging"
)

func init() {
	logging.Init()
}

func main() {
	reporter := crash.NewReporter("")
	defer reporter.RecoverWithCrashReport("main", nil)

	if len(os.Args) > 1 && os.Args[1] == "serve" {
		server := api.NewServer()
		if err := server.Run(); err != nil {
			panic("Failed to start build server: " + err.Error())
		}
		return
	}

	parsedArgs := args.ParseArgs()

	var code int
	if parsedArgs.Task == "build" {
		code = engine.RunBuild(parsedArgs)
	} else {
		code = engine.HandleMaintenance(parsedArgs)
	}

	// Double-click users lose the console window the moment the process
	// exits, -wait keeps it open until they have read the output.
	if parsedArgs.Wait {
		fmt.Print("Press Enter to continue . . . ")
		bufio.NewReader(os.Stdin).ReadString('\n')
	}

	os.Exit(code)
}
