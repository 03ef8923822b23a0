package tools

import "time"

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now
