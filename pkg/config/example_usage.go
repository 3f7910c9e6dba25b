package config

// Example usage of the configuration system:
//
// 1. Load configuration with all sources:
//
//     config, err := config.Load("", nil)
//     if err != nil {
//         log.Fatal(err)
//     }
//
// 2. Load with command line flags:
//
//     flags := map[string]interface{}{
//         "envs-prefix": "MY_SERVICE",
//         "log-level":   "debug",
//     }
//     config, err := config.Load("./retrying.yaml", flags)
//
// 3. Look up a policy and build an executor from it:
//
//     pc, ok := config.Policy("api")
//     policy, err := retry.FromConfig(pc)
//     executor, err := retry.NewExecutor(policy)
//
// Example configuration file (retrying.yaml):
//
//     envs_prefix: MY_SERVICE
//     logging:
//       level: info
//     metrics:
//       addr: ":9102"
//     policies:
//       default:
//         stop: {attempts: 5, duration: 30}
//         wait:
//           exponential: {multiplier: 0.5, min: 1, max: 10.5, exp_base: 2}
//         retry:
//           if_errors: [network, timeout, unavailable]
//
// Environment variables:
//   - RETRYING_ENVS_PREFIX: default prefix for per-policy overrides
//   - RETRYING_LOG_LEVEL: log level (debug, info, warn, error)
//   - RETRYING_LOG_FORMAT: console or json
//   - RETRYING_LOG_FILE: path of a log file
//   - RETRYING_METRICS_ADDR: listen address for /metrics
//
// Per-policy overrides use {PREFIX}__{SUFFIX}, for example
// MY_SERVICE__STOP__ATTEMPTS=7 or MY_SERVICE__WAIT__EXPONENTIAL__MAX=20.
