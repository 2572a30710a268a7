// Package config provides configuration parsing for the effect runtime
// and its tooling.
//
// The configuration is stored in effects.json or effects.toml at the project
// root. This package handles loading, saving, and validating configuration.
//
// # Configuration File Structure
//
//	{
//	  "runtime": {
//	    "callbackPolicy": "isolate",
//	    "panicOnUsageError": true,
//	    "maxEffectRunsPerCommit": 1000,
//	    "logEffectRuns": false
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "namespace": "myapp"
//	  },
//	  "tracing": {
//	    "enabled": true,
//	    "tracerName": "myapp"
//	  },
//	  "devtools": {
//	    "addr": "localhost:7070"
//	  },
//	  "log": {
//	    "level": "debug"
//	  }
//	}
//
// The same keys are accepted in TOML:
//
//	[runtime]
//	callbackPolicy = "isolate"
//
//	[metrics]
//	enabled = true
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Policy:", cfg.Runtime.CallbackPolicy)
package config
