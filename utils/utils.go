package utils

import (
	"fmt"
	"os"
	"strings"
)

// ParseArguments converts command-line arguments into a map of flags and values
func ParseArguments() map[string]string {
	args := make(map[string]string)

	// First, identify the command (serve/ingest/locate)
	command := ""
	commandIndex := -1
	for i := 1; i < len(os.Args); i++ {
		if os.Args[i] == "serve" || os.Args[i] == "ingest" || os.Args[i] == "locate" {
			command = os.Args[i]
			commandIndex = i
			break
		}
	}

	if command != "" {
		args["command"] = command
	}

	// Process all arguments, skipping the command
	for i := 1; i < len(os.Args); i++ {
		if i == commandIndex {
			continue
		}

		arg := os.Args[i]

		// Handle flags with equals sign (--key=value)
		if strings.HasPrefix(arg, "--") && strings.Contains(arg, "=") {
			parts := strings.SplitN(arg, "=", 2)
			flagName := strings.TrimPrefix(parts[0], "--")
			args[flagName] = parts[1]
			continue
		}

		// Handle flags without equals sign (--key value)
		if strings.HasPrefix(arg, "--") {
			flagName := strings.TrimPrefix(arg, "--")

			// Check if this is a boolean flag (no value)
			if i+1 >= len(os.Args) || strings.HasPrefix(os.Args[i+1], "--") {
				args[flagName] = "true"
			} else {
				// The next argument is the value
				args[flagName] = os.Args[i+1]
				i++ // Skip the value in the next iteration
			}
		}
	}

	return args
}

// PrintUsage outputs the command-line usage instructions
func PrintUsage() {
	fmt.Printf("Usage:\n")
	fmt.Printf("  %s serve [--host=ADDR] [--port=N] [--debug] [--logfile=PATH]\n", os.Args[0])
	fmt.Printf("  %s ingest --folder=PATH [--watch] [--debug] [--logfile=PATH]\n", os.Args[0])
	fmt.Printf("  %s locate --image=PATH [--context=TEXT] [--debug] [--logfile=PATH]\n", os.Args[0])
	fmt.Printf("\nParameters:\n")
	fmt.Printf("  --host        : Address to bind the API server to\n")
	fmt.Printf("  --port        : Port for the API server\n")
	fmt.Printf("  --folder      : Path to folder of geotagged images to ingest\n")
	fmt.Printf("  --watch       : Keep watching the folder for new images after the scan\n")
	fmt.Printf("  --image       : Path to image to geolocate\n")
	fmt.Printf("  --context     : Additional free-text context for the prediction\n")
	fmt.Printf("  --debug       : Enable debug mode (logs detailed information)\n")
	fmt.Printf("  --logfile     : Specify custom log file path (default: geoagent.log)\n")
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  %s serve --port=8000 --debug\n", os.Args[0])
	fmt.Printf("  %s ingest --folder=/path/to/photos --watch\n", os.Args[0])
	fmt.Printf("  %s locate --image=/path/to/photo.jpg --context=\"taken on vacation in Europe\"\n", os.Args[0])
}
