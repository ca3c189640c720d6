package reportmerge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/ostrovlabs/loyalty_backend/config"
	"bitbucket.org/ostrovlabs/loyalty_backend/models"
	"gorm.io/gorm"
)

var goodsExportCSV = []byte("Код товару,Найменування,УКТ ЗЕД,Штрих-код,Фіскальні номери чеків,Дата продажу,Кількість,Вартість,Загальна сума\n" +
	"A1,Латте,0901,4820000001,100,15.08.2026,2,50,100\n" +
	"B2,Круасан,1905,4820000002,101,15.08.2026,1,45,45\n")

func TestProcessReportFileSkipsReprocessedFile(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()
	db := setupReportTestDB(t)

	batch1, stats1, err := ProcessReportFile(ctx, "sales.csv", goodsExportCSV)
	if err != nil {
		t.Fatalf("first process: %v", err)
	}
	if batch1.ProcessingStatus != models.ReportStatusCompleted {
		t.Fatalf("first batch status = %q, want completed", batch1.ProcessingStatus)
	}
	if stats1.Created != 2 || stats1.Errors != 0 {
		t.Fatalf("first stats: created=%d errors=%d, want 2/0", stats1.Created, stats1.Errors)
	}
	assertTableCount(t, db, &models.FiscalLineItem{}, 2)

	// The same file again short-circuits on the completed batch: no new
	// batch row, no touched sales rows.
	batch2, stats2, err := ProcessReportFile(ctx, "sales.csv", goodsExportCSV)
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if batch2.ID != batch1.ID {
		t.Fatalf("second batch id = %d, want %d (reused)", batch2.ID, batch1.ID)
	}
	if stats2.Skipped != 2 || stats2.Created != 0 {
		t.Fatalf("second stats: skipped=%d created=%d, want 2/0", stats2.Skipped, stats2.Created)
	}
	assertTableCount(t, db, &models.FiscalLineItem{}, 2)
	assertTableCount(t, db, &models.ReportBatch{}, 1)

	// Identical content under a different name is a new file: it gets its
	// own batch and runs the merge, which finds every row already present.
	batch3, stats3, err := ProcessReportFile(ctx, "sales-copy.csv", goodsExportCSV)
	if err != nil {
		t.Fatalf("third process: %v", err)
	}
	if batch3.ID == batch1.ID {
		t.Fatalf("third batch reused id %d, want a new batch", batch3.ID)
	}
	if batch3.ProcessingStatus != models.ReportStatusCompleted {
		t.Fatalf("third batch status = %q, want completed", batch3.ProcessingStatus)
	}
	if stats3.Created != 0 || stats3.Updated != 0 || stats3.Skipped != 2 {
		t.Fatalf("third stats: created=%d updated=%d skipped=%d, want 0/0/2",
			stats3.Created, stats3.Updated, stats3.Skipped)
	}
	assertTableCount(t, db, &models.FiscalLineItem{}, 2)
	assertTableCount(t, db, &models.ReportBatch{}, 2)
}

func assertTableCount(t *testing.T, db *gorm.DB, model interface{}, want int64) {
	t.Helper()
	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	if count != want {
		t.Fatalf("%T rows = %d, want %d", model, count, want)
	}
}

func setupReportTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "loyalty_test")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}
	return db
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("loyalty-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=loyalty_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
