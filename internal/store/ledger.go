package store

import "proptools/internal/models"

// Ledger describes a vote table holding at most one row per (user, target)
// and the counter column on the target that mirrors its row count.
type Ledger struct {
	Name         string
	Table        string // ledger table
	TargetTable  string
	TargetColumn string // foreign key column in Table
	Counter      string // counter column in TargetTable
	NewRow       func(userID, targetID uint) any
}

var (
	ToolUpvotes = Ledger{
		Name:         "tool_upvotes",
		Table:        "upvotes",
		TargetTable:  "tools",
		TargetColumn: "tool_id",
		Counter:      "upvotes",
		NewRow: func(userID, toolID uint) any {
			return &models.Upvote{UserID: userID, ToolID: toolID}
		},
	}

	ReviewHelpful = Ledger{
		Name:         "review_helpful",
		Table:        "helpful_votes",
		TargetTable:  "reviews",
		TargetColumn: "review_id",
		Counter:      "helpful_count",
		NewRow: func(userID, reviewID uint) any {
			return &models.HelpfulVote{UserID: userID, ReviewID: reviewID}
		},
	}

	GroupMembers = Ledger{
		Name:         "group_members",
		Table:        "group_members",
		TargetTable:  "groups",
		TargetColumn: "group_id",
		Counter:      "member_count",
		NewRow: func(userID, groupID uint) any {
			return &models.GroupMember{UserID: userID, GroupID: groupID}
		},
	}
)

// Ledgers lists every known ledger, keyed by name.
var Ledgers = map[string]Ledger{
	ToolUpvotes.Name:   ToolUpvotes,
	ReviewHelpful.Name: ReviewHelpful,
	GroupMembers.Name:  GroupMembers,
}
