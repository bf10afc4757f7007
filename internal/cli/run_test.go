package cli

import (
	"strings"
	"testing"
)

func TestParseStages(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		defaultRate float64
		wantErr     bool
		wantLen     int
		checkIndex  int
		checkDur    string
		checkUsers  int
		checkRate   float64
	}{
		{
			name:        "Full three-field stages",
			input:       "2m:2:2,2m:4:2,2m:6:2",
			defaultRate: 1,
			wantLen:     3,
			checkIndex:  1,
			checkDur:    "4m0s", // lengths accumulate into boundaries
			checkUsers:  4,
			checkRate:   2,
		},
		{
			name:        "Spawn rate falls back to default",
			input:       "30s:10,1m:0",
			defaultRate: 5,
			wantLen:     2,
			checkIndex:  0,
			checkDur:    "30s",
			checkUsers:  10,
			checkRate:   5,
		},
		{
			name:        "Bare-second durations",
			input:       "120:2:2,240:4:2",
			defaultRate: 1,
			wantLen:     2,
			checkIndex:  1,
			checkDur:    "6m0s",
			checkUsers:  4,
			checkRate:   2,
		},
		{
			name:    "Missing users field",
			input:   "2m",
			wantErr: true,
		},
		{
			name:    "Too many fields",
			input:   "2m:2:2:9",
			wantErr: true,
		},
		{
			name:    "Non-numeric users",
			input:   "2m:many",
			wantErr: true,
		},
		{
			name:    "Bad duration",
			input:   "soon:2",
			wantErr: true,
		},
		{
			name:    "Empty list",
			input:   " , ,",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stages, err := parseStages(tt.input, tt.defaultRate)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %+v", tt.input, stages)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(stages) != tt.wantLen {
				t.Fatalf("expected %d stages, got %d", tt.wantLen, len(stages))
			}

			stage := stages[tt.checkIndex]
			if stage.Duration != tt.checkDur {
				t.Errorf("stage %d duration = %q, want %q", tt.checkIndex, stage.Duration, tt.checkDur)
			}
			if stage.Users != tt.checkUsers {
				t.Errorf("stage %d users = %d, want %d", tt.checkIndex, stage.Users, tt.checkUsers)
			}
			if stage.SpawnRate != tt.checkRate {
				t.Errorf("stage %d spawn rate = %v, want %v", tt.checkIndex, stage.SpawnRate, tt.checkRate)
			}
		})
	}
}

func setRunFlags(t *testing.T, flags map[string]string) {
	t.Helper()
	for name, value := range flags {
		if err := runCmd.Flags().Set(name, value); err != nil {
			t.Fatalf("setting --%s: %v", name, err)
		}
	}
	t.Cleanup(func() {
		for name := range flags {
			flag := runCmd.Flags().Lookup(name)
			runCmd.Flags().Set(name, flag.DefValue)
		}
	})
}

func TestBuildProfileFromFlagsQuickMode(t *testing.T) {
	setRunFlags(t, map[string]string{
		"endpoint":   "https://api.example.com/invocations",
		"payload":    "payload.json",
		"users":      "10",
		"spawn-rate": "2",
		"run-time":   "5m",
		"model":      "distilbert",
		"variants":   "3",
	})

	profile, err := buildProfileFromFlags(runCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(profile.Stages) != 1 {
		t.Fatalf("expected single stage, got %d", len(profile.Stages))
	}
	stage := profile.Stages[0]
	if stage.Duration != "5m" || stage.Users != 10 || stage.SpawnRate != 2 {
		t.Errorf("unexpected stage: %+v", stage)
	}
	if profile.Endpoint.Variants != 3 || profile.Endpoint.Model != "distilbert" {
		t.Errorf("unexpected endpoint config: %+v", profile.Endpoint)
	}
}

func TestBuildProfileFromFlagsStagedMode(t *testing.T) {
	setRunFlags(t, map[string]string{
		"endpoint": "https://api.example.com/invocations",
		"payload":  "payload.json",
		"stages":   "2m:2:2,2m:4:2,2m:6:2",
	})

	profile, err := buildProfileFromFlags(runCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(profile.Stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(profile.Stages))
	}

	table, err := profile.StageTable()
	if err != nil {
		t.Fatalf("synthesized profile must produce a valid table: %v", err)
	}
	if table.MaxTarget() != 6 {
		t.Errorf("expected max target 6, got %d", table.MaxTarget())
	}
}

func TestBuildProfileFromFlagsRequiresEndpoint(t *testing.T) {
	setRunFlags(t, map[string]string{
		"users":    "10",
		"run-time": "5m",
	})

	_, err := buildProfileFromFlags(runCmd)
	if err == nil {
		t.Fatal("expected error without --endpoint, got nil")
	}
	if !strings.Contains(err.Error(), "--endpoint") {
		t.Errorf("expected flag hint in error, got: %v", err)
	}
}

func TestBuildProfileFromFlagsRequiresSchedule(t *testing.T) {
	setRunFlags(t, map[string]string{
		"endpoint": "https://api.example.com/invocations",
		"payload":  "payload.json",
	})

	_, err := buildProfileFromFlags(runCmd)
	if err == nil {
		t.Fatal("expected error without a schedule, got nil")
	}
	if !strings.Contains(err.Error(), "--stages") {
		t.Errorf("expected flag hint in error, got: %v", err)
	}
}

func TestRootHasRunCommand(t *testing.T) {
	found := false
	for _, c := range RootCmd.Commands() {
		if c.Name() == "run" {
			found = true
		}
	}
	if !found {
		t.Error("expected run command registered on root")
	}
}
