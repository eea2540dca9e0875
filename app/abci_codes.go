package app

// ABCI response codes this application returns from CheckTx. CodeInvalidNonce
// is distinguished from the generic CodeInternal per spec.md §7: it is not
// treated as a hard error by a well-behaved submitter (the composer's
// executor, Composer Executor §4.8) but as a signal to refetch the
// account's current nonce and resubmit under a fresh signature.
const (
	CodeOK              uint32 = 0
	CodeInternal        uint32 = 1
	CodeInvalidNonce    uint32 = 2
	CodeMempoolRejected uint32 = 3
)
