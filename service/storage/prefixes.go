package storage

const (
	PrefixFirst  = 1
	PrefixCursor = 2

	PrefixHeader         = 3
	PrefixHeightForBlock = 4

	PrefixTransaction           = 5
	PrefixHeightForTransaction  = 6
	PrefixTransactionsForHeight = 7

	PrefixHistory = 8
	PrefixUnspent = 9
	PrefixSpent   = 10
)
