// Package lifecycle implements couple formation, freeze/unfreeze, repair,
// and break, and the quorum-with-rollback metadata writer they all
// share.
//
// Every metadata write (build, freeze/unfreeze, repair) funnels through
// Writer.WriteQuorum: it writes the blob to the member groups in order,
// stops at the first group whose write fails, rolls back the groups that
// succeeded, and only ever leaves a couple in BAD when both the write and
// the rollback failed. break removes the blobs through Writer.Remove. Status derivation itself is a
// pure function (DeriveStatus) of member statuses, meta agreement, and the
// frozen flag — it never performs I/O.
package lifecycle
