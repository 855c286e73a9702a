package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
)

type GenConfig struct {
	regen      bool
	projectDir string
}

var log = logrus.New()

func main() {
	regen := flag.Bool("regen", false, "replace an existing pbw.toml")
	flag.Parse()

	projectDir := "."
	if flag.NArg() > 0 {
		projectDir = flag.Arg(0)
	}

	genConfig := &GenConfig{regen: *regen, projectDir: projectDir}
	genConfig.Run()
}

func (gc *GenConfig) Run() {
	workFilePath := filepath.Join(gc.projectDir, "pbw.toml.new")
	destPath := filepath.Join(gc.projectDir, "pbw.toml")

	if fileExists(destPath) && !gc.regen {
		log.Fatalf("%s already exists, pass -regen to replace it", destPath)
	}

	gc.checkRegen(destPath)

	scan, err := scanProject(gc.projectDir)
	if err != nil {
		log.Fatalf("Error scanning %s: %v", gc.projectDir, err)
	}
	log.Infof("Entry script: %s", scan.entry)
	if scan.requirements == "" {
		log.Warn("No requirements.txt found, the install step will have nothing to do")
	}

	gc.saveManifest(gc.buildManifest(scan), workFilePath)

	if err := moveFile(workFilePath, destPath); err != nil {
		log.Fatalf("Error moving file to %s: %v", destPath, err)
	}
	log.Infof("Moved %s to %s", workFilePath, destPath)
	log.Info("Done")
}

func (gc *GenConfig) checkRegen(destPath string) {
	if gc.regen {
		err := os.Remove(destPath)
		if err != nil {
			if os.IsNotExist(err) {
				log.Warnf("%s not found, nothing to remove.", destPath)
			} else {
				log.Errorf("Error removing %s: %v", destPath, err)
			}
		} else {
			log.Info("Manifest will be regenerated - please wait ...")
		}
	}
}

// manifest mirrors the sections the builder reads. The scaffold keeps
// its own copy of the layout so an empty publish block never ends up
// in a generated file.
type manifest struct {
	Project  manifestProject  `toml:"project"`
	Python   manifestPython   `toml:"python"`
	Bundle   manifestBundle   `toml:"bundle"`
	Targets  []manifestTarget `toml:"target"`
	Rules    *manifestRules   `toml:"rules,omitempty"`
	Timeouts manifestTimeouts `toml:"timeouts"`
}

type manifestProject struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

type manifestPython struct {
	Interpreter  string `toml:"interpreter,omitempty"`
	Requirements string `toml:"requirements,omitempty"`
}

type manifestBundle struct {
	OneFile   bool           `toml:"onefile"`
	Windowed  bool           `toml:"windowed"`
	Clean     bool           `toml:"clean"`
	NoConfirm bool           `toml:"noconfirm"`
	Icon      string         `toml:"icon,omitempty"`
	SpecDir   string         `toml:"spec_dir"`
	WorkDir   string         `toml:"work_dir"`
	DistDir   string         `toml:"dist_dir"`
	Data      []manifestData `toml:"data,omitempty"`
}

type manifestData struct {
	Src  string `toml:"src"`
	Dest string `toml:"dest"`
}

type manifestTarget struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
}

type manifestRules struct {
	File string `toml:"file"`
}

type manifestTimeouts struct {
	Install string `toml:"install"`
	Bundle  string `toml:"bundle"`
}

type projectScan struct {
	name         string
	entry        string
	requirements string
	icon         string
	dataFiles    []string
	rulesFile    string
}

func scanProject(projectDir string) (projectScan, error) {
	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		return projectScan{}, err
	}

	scan := projectScan{name: filepath.Base(absDir)}

	scan.entry, err = detectEntryScript(projectDir)
	if err != nil {
		return projectScan{}, err
	}

	if fileExists(filepath.Join(projectDir, "requirements.txt")) {
		scan.requirements = "requirements.txt"
	}
	scan.icon = findIcon(projectDir)

	confFiles, err := filepath.Glob(filepath.Join(projectDir, "*.conf"))
	if err != nil {
		return projectScan{}, err
	}
	sort.Strings(confFiles)
	for _, confFile := range confFiles {
		name := filepath.Base(confFile)
		scan.dataFiles = append(scan.dataFiles, name)
		if scan.rulesFile == "" && strings.Contains(name, "rules") {
			scan.rulesFile = name
		}
	}

	return scan, nil
}

// detectEntryScript prefers main.py and otherwise accepts a project
// with exactly one top-level script. Anything else needs a human to
// name the entry point.
func detectEntryScript(projectDir string) (string, error) {
	if fileExists(filepath.Join(projectDir, "main.py")) {
		return "main.py", nil
	}

	entries, err := os.ReadDir(projectDir)
	if err != nil {
		return "", err
	}

	notEntryPoints := []string{"setup.py", "conftest.py"}

	var candidates []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".py") {
			continue
		}
		if contains(notEntryPoints, entry.Name()) {
			continue
		}
		candidates = append(candidates, entry.Name())
	}
	sort.Strings(candidates)

	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("no python script found in %s", projectDir)
	case 1:
		return candidates[0], nil
	default:
		return "", fmt.Errorf("several scripts could be the entry point (%s), add a main.py or write the manifest by hand", strings.Join(candidates, ", "))
	}
}

func findIcon(projectDir string) string {
	patterns := []string{"*.ico", filepath.Join("assets", "*.ico")}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(projectDir, pattern))
		if err != nil || len(matches) == 0 {
			continue
		}
		sort.Strings(matches)
		rel, err := filepath.Rel(projectDir, matches[0])
		if err != nil {
			continue
		}
		return filepath.ToSlash(rel)
	}
	return ""
}

func (gc *GenConfig) buildManifest(scan projectScan) manifest {
	built := manifest{
		Project: manifestProject{Name: scan.name, Version: "0.1.0"},
		Python:  manifestPython{Requirements: scan.requirements},
		Bundle: manifestBundle{
			OneFile:   true,
			Windowed:  false,
			Clean:     true,
			NoConfirm: true,
			Icon:      scan.icon,
			SpecDir:   "spec",
			WorkDir:   "build",
			DistDir:   "dist",
		},
		Targets:  []manifestTarget{{Name: scan.name, Entry: scan.entry}},
		Timeouts: manifestTimeouts{Install: "15m", Bundle: "10m"},
	}

	for _, dataFile := range scan.dataFiles {
		built.Bundle.Data = append(built.Bundle.Data, manifestData{Src: dataFile, Dest: "."})
	}
	// A onefile binary unpacks to a temp dir, so a found icon ships as
	// data too and stays reachable at runtime.
	if strings.HasPrefix(scan.icon, "assets/") {
		built.Bundle.Data = append(built.Bundle.Data, manifestData{Src: scan.icon, Dest: "assets"})
	}
	if scan.rulesFile != "" {
		built.Rules = &manifestRules{File: scan.rulesFile}
	}

	return built
}

func (gc *GenConfig) saveManifest(built manifest, outputFile string) {
	file, err := os.Create(outputFile)
	if err != nil {
		log.Fatalf("Error creating manifest file: %v", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "# Starter manifest generated for %s.\n", built.Project.Name)
	fmt.Fprintf(file, "# Review the bundle options before the first build.\n\n")

	encoder := toml.NewEncoder(file)
	encoder.Indent = ""
	if err := encoder.Encode(built); err != nil {
		log.Fatalf("Error encoding manifest: %v", err)
	}
}

func fileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return !os.IsNotExist(err)
}

func moveFile(sourcePath, destPath string) error {
	err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm)
	if err != nil {
		return fmt.Errorf("error creating directories: %w", err)
	}
	return os.Rename(sourcePath, destPath)
}

func contains(s []string, str string) bool {
	for _, v := range s {
		if v == str {
			return true
		}
	}
	return false
}
