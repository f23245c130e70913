// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

const (
	// KVBucketNameLists is the name of the KV bucket for list catalog entries.
	KVBucketNameLists = "subscriber-lists"

	// KVBucketNameListFields is the name of the KV bucket for custom field schemas, keyed by list id.
	KVBucketNameListFields = "subscriber-list-fields"

	// KVBucketNameSubscribers is the name of the KV bucket for subscribers.
	KVBucketNameSubscribers = "subscribers"

	// KVBucketNameBlacklist is the name of the KV bucket for blacklisted addresses.
	KVBucketNameBlacklist = "subscriber-blacklist"

	// KVBucketNameConfirmations is the name of the KV bucket for pending confirmations.
	KVBucketNameConfirmations = "subscriber-confirmations"

	// Key patterns. Lists and subscribers are stored under their cid.

	// KVLookupListIDPrefix maps a numeric list id to the list cid
	KVLookupListIDPrefix = "lookup/list_id/%d"

	// KVLookupSubscriberEmailPrefix is the unique constraint key for (list, email)
	KVLookupSubscriberEmailPrefix = "lookup/subscriber_email/%s"

	// KVSequenceSubscriberID is the counter key for numeric subscriber ids
	KVSequenceSubscriberID = "sequence/subscriber_id"
)
