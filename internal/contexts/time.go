package contexts

import "time"

// timeNow is swapped in tests to control timestamps and generated ids.
var timeNow = time.Now
