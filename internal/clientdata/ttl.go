package clientdata

import "time"

// TTLCurrentPrice bounds how long a quote may be served without asking the provider again.
const TTLCurrentPrice = 10 * time.Minute
