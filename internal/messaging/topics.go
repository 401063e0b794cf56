package messaging

// Topic constants for the minting messaging system
const (
	// Core minting workflow topics
	TopicMintRequests   = "bills.mint_requests"   // apiserver → mintd
	TopicBillsIssued    = "bills.issued"          // mintd → downstream consumers
	TopicMintFailures   = "bills.mint_failures"   // mintd → apiserver
	TopicVerifyRequests = "bills.verify_requests" // apiserver → verifyd
	TopicVerifyResults  = "bills.verify_results"  // verifyd → apiserver

	// Statistics and monitoring topics
	TopicMiningStats = "bills.mining_stats" // mintd → statsd
)
