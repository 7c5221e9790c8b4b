/*
Package memory implements the Request Memory: the process-wide record of the last
trajectory request made for each subject.

The rendering surface is torn down and recreated as the caller navigates between
subjects. Recalling the remembered request on every subject change restores the
prior view without the caller having to persist it. Access per subject is
serialized with reference-counted locks, optionally backed by a distributed lock
when several replicas share one RequestStore.
*/
package memory
