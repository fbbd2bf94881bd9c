package config

import "github.com/breeze-rmm/agent/internal/logging"

var log = logging.L("config")
