// meta/meta.go
package meta

import "time"

// POLL_INTERVAL is the base delay between state polls while idle.
const POLL_INTERVAL = 5 * time.Second

// MONITOR_INTERVAL is the delay between polls while a vote is watched for overrides.
const MONITOR_INTERVAL = 2 * time.Second

// AUTH_RETRY_DELAY is the backoff while the agent is signed out.
const AUTH_RETRY_DELAY = 5 * time.Second

// MAX_ROUND_BUDGET_PCT caps what a single round may cost, as a share of the balance.
const MAX_ROUND_BUDGET_PCT = 0.2

// HTTP_TIMEOUT bounds every request to the game server.
const HTTP_TIMEOUT = 10 * time.Second

// DATA_DIR holds settings, agent state, journals and the pid file.
const DATA_DIR = ".rodeo"

// DEFAULT_SERVER names the server used when settings select none.
const DEFAULT_SERVER = "live"

// DEFAULT_SERVER_URL is the base URL of DEFAULT_SERVER.
const DEFAULT_SERVER_URL = "http://localhost:8080"

// LEDGER_DRIVER is the default vote ledger backend.
const LEDGER_DRIVER = "sqlite"

// EXPERIMENT_GAMES is the default number of simulated games per experiment.
const EXPERIMENT_GAMES = 20

// MAX_TICKS bounds a simulated game.
const MAX_TICKS = 2000
