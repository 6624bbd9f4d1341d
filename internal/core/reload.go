package core

import (
	"fmt"
	"strings"
)

// ReloadConfig reloads the configuration from disk and applies changes that
// can be hot-reloaded without restarting the engine. Returns a list of what
// changed.
//
// Hot-reloadable settings:
//   - detection.confidence_threshold, detection.auto_response
//   - compliance.auto_scan, compliance.standards
//   - logging.level
//
// NOT hot-reloadable (require restart):
//   - bus config (NATS URL, port, data dir)
//   - buffer sizes, retention windows, job intervals
func ReloadConfig(engine *Engine, configPath string) ([]string, error) {
	if configPath == "" {
		return nil, fmt.Errorf("no config path set, cannot reload")
	}

	newCfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	var changes []string

	if newCfg.LogLevel() != engine.Config.LogLevel() {
		engine.Config.SetLogLevel(newCfg.Logging.Level)
		changes = append(changes, "logging.level → "+newCfg.LogLevel())
	}

	if newCfg.Detection.ConfidenceThreshold != engine.Config.DetectionThreshold() {
		engine.Config.SetDetectionThreshold(newCfg.Detection.ConfidenceThreshold)
		changes = append(changes, fmt.Sprintf("detection.confidence_threshold → %v", newCfg.Detection.ConfidenceThreshold))
	}

	if newCfg.Detection.AutoResponse != engine.Config.AutoResponseEnabled() {
		engine.Config.SetAutoResponse(newCfg.Detection.AutoResponse)
		changes = append(changes, fmt.Sprintf("detection.auto_response → %v", newCfg.Detection.AutoResponse))
	}

	if newCfg.Compliance.AutoScan != engine.Config.AutoScanEnabled() {
		engine.Config.SetAutoScan(newCfg.Compliance.AutoScan)
		changes = append(changes, fmt.Sprintf("compliance.auto_scan → %v", newCfg.Compliance.AutoScan))
	}

	if strings.Join(newCfg.Compliance.Standards, ",") != strings.Join(engine.Config.ScanStandards(), ",") {
		engine.Config.SetScanStandards(newCfg.Compliance.Standards)
		changes = append(changes, "compliance.standards → "+strings.Join(newCfg.Compliance.Standards, ","))
	}

	if len(changes) > 0 {
		engine.Logger.Info().Strs("changes", changes).Msg("configuration reloaded")
	}

	return changes, nil
}
