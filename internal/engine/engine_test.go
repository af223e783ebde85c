package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugscan/internal/engine"
	"bugscan/internal/lang"
	"bugscan/internal/lexer"
	"bugscan/internal/rules"
)

func newEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	eng, err := engine.New(lang.Builtin(), rules.Default(), opts...)
	require.NoError(t, err)
	return eng
}

func ruleIDs(res *engine.ScanResult) []string {
	var ids []string
	for _, f := range res.Findings {
		ids = append(ids, f.RuleID)
	}
	return ids
}

func TestNewValidation(t *testing.T) {
	_, err := engine.New(nil, rules.Default())
	assert.ErrorIs(t, err, engine.ErrEngineInit)

	_, err = engine.New(lang.NewRegistry(), rules.Default())
	assert.ErrorIs(t, err, engine.ErrEngineInit)

	_, err = engine.New(lang.Builtin(), rules.NewSet())
	assert.ErrorIs(t, err, engine.ErrEngineInit)
}

func TestNewFreezesRuleSet(t *testing.T) {
	set := rules.Default()
	_, err := engine.New(lang.Builtin(), set)
	require.NoError(t, err)
	assert.ErrorIs(t, set.Register(rules.Rule{ID: "late"}), rules.ErrFrozen)
}

func TestScanUnsupportedLanguage(t *testing.T) {
	res := newEngine(t).Scan("notes.txt", []byte("nothing to see"))
	assert.Equal(t, engine.ClassUnknown, res.Classification)
	assert.ErrorIs(t, res.Err, lang.ErrUnsupportedLanguage)
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, res.Findings)
}

func TestScanHeapAndThreadLeak(t *testing.T) {
	src := `
void worker_leak() {
    char* data = (char*)malloc(64);
    pthread_t tid;
    pthread_create(&tid, NULL, task, NULL);
}`
	res := newEngine(t).Scan("leak.cpp", []byte(src))

	assert.Equal(t, engine.ClassBuggy, res.Classification)
	require.Equal(t, []string{rules.RuleHeapLeak, rules.RuleHandleLeak}, ruleIDs(res))

	assert.Equal(t, rules.SeverityError, res.Findings[0].Severity)
	assert.Equal(t, "data", res.Findings[0].Binding)
	assert.Equal(t, 3, res.Findings[0].Line)

	assert.Equal(t, rules.SeverityWarning, res.Findings[1].Severity)
	assert.Equal(t, "tid", res.Findings[1].Binding)
}

func TestScanFreedAllocationIsClean(t *testing.T) {
	src := `
void ok() {
    char* p = (char*)malloc(32);
    use(p);
    free(p);
}`
	res := newEngine(t).Scan("ok.c", []byte(src))
	assert.Equal(t, engine.ClassClean, res.Classification)
	assert.NotNil(t, res.Findings)
	assert.Empty(t, res.Findings)
}

func TestScanReleaseInNestedScope(t *testing.T) {
	src := `
void conditional_free(int cond) {
    char* p = (char*)malloc(10);
    if (cond) {
        free(p);
    }
}`
	res := newEngine(t).Scan("nested.c", []byte(src))
	assert.Equal(t, engine.ClassClean, res.Classification)
}

func TestScanJoinedThreadIsClean(t *testing.T) {
	src := `
void run_thread() {
    std::thread t(count);
    t.join();
}`
	res := newEngine(t).Scan("thread.cpp", []byte(src))
	assert.Equal(t, engine.ClassClean, res.Classification)

	res = newEngine(t).Scan("thread.cpp", []byte(`
void run_thread() {
    std::thread t(count);
}`))
	assert.Equal(t, []string{rules.RuleHandleLeak}, ruleIDs(res))
}

func TestScanScopeGuardedWrapsAreClean(t *testing.T) {
	src := `
void guarded() {
    std::unique_ptr<Widget> w(new Widget());
    auto p = std::make_unique<int>(5);
    std::lock_guard<std::mutex> guard(mu);
}`
	res := newEngine(t).Scan("raii.cpp", []byte(src))
	assert.Equal(t, engine.ClassClean, res.Classification)
	assert.Empty(t, res.Findings)
}

func TestScanBoundedCopiesNeverFire(t *testing.T) {
	src := `
void bounded(const char* input) {
    char buf[8];
    strncpy(buf, input, sizeof(buf) - 1);
    snprintf(buf, sizeof(buf), "%s", input);
    fgets(buf, sizeof(buf), stdin);
}`
	res := newEngine(t).Scan("bounded.c", []byte(src))
	assert.Equal(t, engine.ClassClean, res.Classification)
}

func TestScanCapacityPolicy(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "literal overflows declared buffer",
			src: `
void overflow() {
    char small[8];
    strcpy(small, "definitely too long");
}`,
			want: []string{rules.RuleCopyOverflow},
		},
		{
			name: "literal fits declared buffer",
			src: `
void fits() {
    char buf[32];
    strcpy(buf, "short");
}`,
			want: nil,
		},
		{
			name: "unverifiable source into declared buffer",
			src: `
void unchecked(const char* name) {
    char buf[8];
    sprintf(buf, "%s", name);
}`,
			want: []string{rules.RuleCopyUnchecked},
		},
		{
			name: "heap destination sized from the source",
			src: `
void sized(const char* name) {
    char* buf = (char*)malloc(strlen(name) + 1);
    sprintf(buf, "%s", name);
    free(buf);
}`,
			want: nil,
		},
		{
			name: "no capacity evidence",
			src: `
void opaque(char* dest) {
    gets(dest);
}`,
			want: []string{rules.RuleCopyOpaque},
		},
	}

	eng := newEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := eng.Scan("copy.c", []byte(tt.src))
			assert.Equal(t, tt.want, ruleIDs(res))
		})
	}
}

func TestScanPythonWithStatement(t *testing.T) {
	eng := newEngine(t)

	clean := "def read_all(path):\n" +
		"    with open(path) as f:\n" +
		"        return f.read()\n"
	res := eng.Scan("read.py", []byte(clean))
	assert.Equal(t, engine.ClassClean, res.Classification)

	buggy := "def leak_handle(path):\n" +
		"    fh = open(path)\n" +
		"    return fh.readline()\n"
	res = eng.Scan("leak.py", []byte(buggy))
	assert.Equal(t, []string{rules.RuleHandleLeak}, ruleIDs(res))
	assert.Equal(t, "fh", res.Findings[0].Binding)
}

func TestScanPythonWithExistingHandle(t *testing.T) {
	// A handle opened earlier and then used as a bare with-context is
	// owned by the with block, not leaked.
	src := "def reopen(path):\n" +
		"    f = open(path)\n" +
		"    with f:\n" +
		"        return f.read()\n"
	res := newEngine(t).Scan("wrap.py", []byte(src))
	assert.Equal(t, engine.ClassClean, res.Classification)
	assert.Empty(t, res.Findings)
}

func TestScanAdoptedAllocationIsClean(t *testing.T) {
	// Ownership transfer of a raw allocation into a smart pointer
	// discharges the free obligation.
	src := `
void adopt(int n) {
    char* p = (char*)malloc(n);
    std::unique_ptr<char, decltype(&free)> up(p, free);
}`
	res := newEngine(t).Scan("adopt.cpp", []byte(src))
	assert.Equal(t, engine.ClassClean, res.Classification)
	assert.Empty(t, res.Findings)
}

func TestScanPythonSocketAndThread(t *testing.T) {
	eng := newEngine(t)

	src := "def fetch():\n" +
		"    sock = socket.socket(socket.AF_INET, socket.SOCK_STREAM)\n" +
		"    data = sock.recv(1024)\n" +
		"    sock.close()\n" +
		"    return data\n"
	assert.Equal(t, engine.ClassClean, eng.Scan("net.py", []byte(src)).Classification)

	src = "def spawn():\n" +
		"    t = threading.Thread(target=work)\n" +
		"    t.start()\n"
	assert.Equal(t, []string{rules.RuleHandleLeak}, ruleIDs(eng.Scan("spawn.py", []byte(src))))
}

func TestScanGoDeferredClose(t *testing.T) {
	eng := newEngine(t)

	src := `
func read() ([]byte, error) {
	f, err := os.Open("config.json")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}`
	res := eng.Scan("read.go", []byte(src))
	assert.Equal(t, engine.ClassClean, res.Classification)

	src = `
func poll(interval time.Duration) {
	ticker := time.NewTicker(interval)
	for range ticker.C {
	}
}`
	res = eng.Scan("poll.go", []byte(src))
	assert.Equal(t, []string{rules.RuleHandleLeak}, ruleIDs(res))
	assert.Equal(t, "ticker", res.Findings[0].Binding)
}

func TestScanGoContextCancel(t *testing.T) {
	src := `
func fetch(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	use(ctx)
}`
	res := newEngine(t).Scan("ctx.go", []byte(src))
	assert.Equal(t, engine.ClassClean, res.Classification)
}

func TestScanJavaScriptTimers(t *testing.T) {
	eng := newEngine(t)

	src := `
function poll() {
  const timer = setInterval(tick, 1000);
  return timer;
}`
	res := eng.Scan("poll.js", []byte(src))
	assert.Equal(t, []string{rules.RuleHandleLeak}, ruleIDs(res))

	src = `
function readConfig() {
  const fd = fs.openSync('/etc/app.conf', 'r');
  const data = fs.readFileSync(fd);
  fs.closeSync(fd);
  return data;
}`
	assert.Equal(t, engine.ClassClean, eng.Scan("cfg.js", []byte(src)).Classification)
}

func TestScanMalformedInputKeepsFindings(t *testing.T) {
	src := `
void leaky() {
    char* p = (char*)malloc(8);
}
/* never closed`
	res := newEngine(t).Scan("broken.c", []byte(src))

	assert.ErrorIs(t, res.Err, lexer.ErrMalformedInput)
	assert.NotEmpty(t, res.Error)
	// The partial token stream still carries the leak.
	assert.Equal(t, []string{rules.RuleHeapLeak}, ruleIDs(res))
	assert.Equal(t, engine.ClassBuggy, res.Classification)
}

func TestScanIsDeterministic(t *testing.T) {
	src := `
void worker_leak() {
    char* data = (char*)malloc(64);
    pthread_t tid;
    pthread_create(&tid, NULL, task, NULL);
}`
	eng := newEngine(t)
	first := eng.Scan("leak.cpp", []byte(src))
	second := eng.Scan("leak.cpp", []byte(src))

	// Identical input, identical result, finding ids included.
	assert.Equal(t, first, second)
	for _, f := range first.Findings {
		assert.Len(t, f.ID, 16)
	}
	assert.NotEqual(t, first.Findings[0].ID, first.Findings[1].ID)
}

func TestScanDedupesIdenticalFindings(t *testing.T) {
	// Two violations of the same rule on one line through one binding
	// collapse into a single finding.
	src := `
void twice(const char* a, const char* b) {
    char buf[4];
    sprintf(buf, "%s", a); sprintf(buf, "%s", b);
}`
	res := newEngine(t).Scan("dup.c", []byte(src))
	assert.Equal(t, []string{rules.RuleCopyUnchecked}, ruleIDs(res))
}

func TestScanWithTimeoutCompletes(t *testing.T) {
	eng := newEngine(t, engine.WithTimeout(5*time.Second))
	res := eng.Scan("ok.c", []byte("void f() { free(p); }"))
	assert.Equal(t, engine.ClassClean, res.Classification)
	assert.NoError(t, res.Err)
}

func TestCounts(t *testing.T) {
	res := &engine.ScanResult{Findings: []rules.Finding{
		{Severity: rules.SeverityError},
		{Severity: rules.SeverityError},
		{Severity: rules.SeverityWarning},
		{Severity: rules.SeverityInfo},
	}}
	e, w, i := res.Counts()
	assert.Equal(t, 2, e)
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, i)
}
