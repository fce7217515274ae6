// Copyright (C) MongoDB, Inc. 2023-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import "os"

// Component is an enumeration representing the "components" which can be logged
// against. A Level can be configured on a per-component basis.
type Component int

const (
	// ComponentAll enables logging for all components.
	ComponentAll Component = iota

	// ComponentTopology enables topology and heartbeat logging.
	ComponentTopology

	// ComponentServerSelection enables server selection logging.
	ComponentServerSelection

	// ComponentConnection enables monitoring connection logging.
	ComponentConnection
)

// String implements the fmt.Stringer interface.
func (component Component) String() string {
	switch component {
	case ComponentTopology:
		return "topology"
	case ComponentServerSelection:
		return "serverSelection"
	case ComponentConnection:
		return "connection"
	}
	return "all"
}

const (
	envVarAll             = "MONGODB_LOG_ALL"
	envVarTopology        = "MONGODB_LOG_TOPOLOGY"
	envVarServerSelection = "MONGODB_LOG_SERVER_SELECTION"
	envVarConnection      = "MONGODB_LOG_CONNECTION"
)

var componentEnvVars = map[Component]string{
	ComponentTopology:        envVarTopology,
	ComponentServerSelection: envVarServerSelection,
	ComponentConnection:      envVarConnection,
}

// getEnvComponentLevels returns the component levels configured through the
// environment. MONGODB_LOG_ALL applies to every component that has no
// variable of its own. An empty variable counts as unset.
func getEnvComponentLevels() map[Component]Level {
	levels := make(map[Component]Level)

	all := ParseLevel(os.Getenv(envVarAll))
	for component, envVar := range componentEnvVars {
		level := all
		if str := os.Getenv(envVar); str != "" {
			level = ParseLevel(str)
		}
		if level != OffLevel {
			levels[component] = level
		}
	}

	return levels
}

// mergeComponentLevels merges the given maps, with later maps taking
// precedence. A ComponentAll entry is expanded to every component.
func mergeComponentLevels(componentLevels ...map[Component]Level) map[Component]Level {
	merged := make(map[Component]Level)

	for _, levels := range componentLevels {
		if level, ok := levels[ComponentAll]; ok {
			for component := range componentEnvVars {
				merged[component] = level
			}
		}
		for component, level := range levels {
			if component != ComponentAll {
				merged[component] = level
			}
		}
	}

	return merged
}
