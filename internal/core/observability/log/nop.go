package log

var _ Log = Nop{}

// Nop discards everything. Used as the default sink in tests and as the
// fallback when no logger was injected.
type Nop struct{}

func (Nop) Debug(string, ...Field) {}
func (Nop) Info(string, ...Field)  {}
func (Nop) Warn(string, ...Field)  {}
func (Nop) Error(string, ...Field) {}

func (n Nop) With(...Field) Log { return n }

func (Nop) SetLevel(Level)  {}
func (Nop) GetLevel() Level { return LevelSilent }
