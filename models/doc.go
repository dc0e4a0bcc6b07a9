// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models holds the JSON shapes exchanged with clients and the rows
handlers read back from the database.

A poll moves draft → open → closed (StatusDraft, StatusOpen, StatusClosed)
and is counted by one of MethodTraditional, MethodApproval or MethodRanked.
SubmitBallotRequest carries Choices for the first two and Rankings for the
last.

ResultSnapshot is written once when a poll closes and never changes after.
Its Rankings list every option in final order and, for ranked polls, Rounds
records each instant-runoff round. Conclusive is false whenever the count
did not produce exactly one winner.
*/
package models
