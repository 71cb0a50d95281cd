// Package testutil provides shared test helpers for document directories and databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/tramite/internal/index"
	"github.com/starford/tramite/internal/storage"
)

// CongressXML is a small Congress export covering relations, near-duplicate
// subjects, a docket reference and several status signals.
const CongressXML = `<?xml version="1.0" encoding="UTF-8"?>
<results>
  <result>
    <NUMEXPEDIENTE>121/000001</NUMEXPEDIENTE>
    <TIPO>Proyecto de ley</TIPO>
    <OBJETO>Proyecto de Ley de cambio climático y transición energética (621/000045)</OBJETO>
    <AUTOR>Gobierno</AUTOR>
    <FECHAPRESENTACION>19/05/2020</FECHAPRESENTACION>
    <SITUACIONACTUAL>Cerrado</SITUACIONACTUAL>
    <RESULTADOTRAMITACION>Aprobado con modificaciones</RESULTADOTRAMITACION>
    <INICIATIVASRELACIONADAS>122/000002</INICIATIVASRELACIONADAS>
  </result>
  <result>
    <NUMEXPEDIENTE>122/000002</NUMEXPEDIENTE>
    <TIPO>Proposición de ley</TIPO>
    <OBJETO>Ley de protección del medio ambiente</OBJETO>
    <AUTOR>Grupo Parlamentario Mixto</AUTOR>
    <SITUACIONACTUAL>Comisión de Transición Ecológica Enmiendas</SITUACIONACTUAL>
    <INICIATIVASDEORIGEN>999/999999</INICIATIVASDEORIGEN>
  </result>
  <result>
    <NUMEXPEDIENTE>122/000003</NUMEXPEDIENTE>
    <TIPO>Proposición de ley</TIPO>
    <OBJETO>Ley de protección del medioambiente</OBJETO>
    <AUTOR>Grupo Parlamentario Plural</AUTOR>
    <SITUACIONACTUAL>Retirado</SITUACIONACTUAL>
  </result>
  <result>
    <NUMEXPEDIENTE>162/000004</NUMEXPEDIENTE>
    <TIPO>Proposición no de Ley</TIPO>
    <OBJETO>Sobre la pesca de bajura en el Cantábrico</OBJETO>
    <AUTOR>Grupo Parlamentario Vasco</AUTOR>
  </result>
  <result>
    <TIPO>Proposición de ley</TIPO>
    <OBJETO>Entrada sin expediente</OBJETO>
  </result>
</results>`

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "tramite-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDocs creates a temporary documents directory holding files (relative
// path to content) and returns it with a storage provider over it.
func TestDocs(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		WriteFile(t, dir, name, content)
	}
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}

// WriteFile writes content to dir/name, creating parent directories.
func WriteFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
