package task

// mailbox IPC: each task owns a fixed MaxMessages-entry ring buffer. Send
// and receive are both non-blocking at this layer; the syscall package
// implements the blocking send/recv/sleep semantics on top by retrying
// these and yielding to the scheduler on failure.

// TrySend appends msg to t's mailbox. It reports false if the mailbox is
// full.
func (t *Task) TrySend(senderPID uint32, args [5]int32) bool {
	if t.mbCount == MaxMessages {
		return false
	}
	slot := (t.mbHead + t.mbCount) % MaxMessages
	t.mailbox[slot] = Message{SenderPID: senderPID, Args: args}
	t.mbCount++
	return true
}

// TryRecv pops the oldest pending message from t's own mailbox. It reports
// false if the mailbox is empty.
func (t *Task) TryRecv() (Message, bool) {
	if t.mbCount == 0 {
		return Message{}, false
	}
	msg := t.mailbox[t.mbHead]
	t.mbHead = (t.mbHead + 1) % MaxMessages
	t.mbCount--
	return msg, true
}

// MailboxLen reports the number of messages currently queued for t.
func (t *Task) MailboxLen() int {
	return t.mbCount
}
